package handler

import (
	"errors"

	"go-dispatch-ws/internal/middleware"
	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var kindStatus = map[service.Kind]int{
	service.KindValidation:       fiber.StatusBadRequest,
	service.KindNotFound:         fiber.StatusNotFound,
	service.KindInvalidState:     fiber.StatusConflict,
	service.KindConflict:         fiber.StatusConflict,
	service.KindDuplicateScan:    fiber.StatusConflict,
	service.KindCapacityExceeded: fiber.StatusUnprocessableEntity,
	service.KindReconciliation:   fiber.StatusUnprocessableEntity,
}

// errorResponder renders engine errors as {"error","kind","details"}. Anything
// unclassified is logged and answered with a bare 500.
type errorResponder struct {
	log *zap.Logger
}

func (r errorResponder) fail(c *fiber.Ctx, err error) error {
	var se *service.Error
	if errors.As(err, &se) {
		status, ok := kindStatus[se.Kind]
		if !ok {
			status = fiber.StatusInternalServerError
		}
		body := fiber.Map{"error": se.Message, "kind": se.Kind}
		if len(se.Details) > 0 {
			body["details"] = se.Details
		}
		return c.Status(status).JSON(body)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	r.log.Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "kind": service.KindValidation})
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params(name))
	return id, err == nil
}

// parseBody accepts an empty body for endpoints whose payload is optional.
func parseBody(c *fiber.Ctx, out interface{}) bool {
	if len(c.Body()) == 0 {
		return true
	}
	return c.BodyParser(out) == nil
}

func actorOf(c *fiber.Ctx) model.Actor {
	actor, _ := middleware.ActorFrom(c)
	return actor
}
