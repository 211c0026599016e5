package handler

import (
	"go-dispatch-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ScanHandler struct {
	service service.ScanService
	errorResponder
}

func NewScanHandler(s service.ScanService, log *zap.Logger) *ScanHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScanHandler{service: s, errorResponder: errorResponder{log: log}}
}

// Scan handles POST /dispatches/:id/items/:itemId/scans
func (h *ScanHandler) Scan(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	itemID, ok := paramUUID(c, "itemId")
	if !ok {
		return badRequest(c, "Invalid item ID")
	}
	var req service.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	progress, err := h.service.Scan(c.UserContext(), id, itemID, &req, actorOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Barcode recorded", "data": progress})
}

// GetProgress handles GET /dispatches/:id/items/:itemId/scans
func (h *ScanHandler) GetProgress(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	itemID, ok := paramUUID(c, "itemId")
	if !ok {
		return badRequest(c, "Invalid item ID")
	}

	progress, err := h.service.GetProgress(c.UserContext(), id, itemID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": progress})
}

// GetSummary handles GET /dispatches/:id/scans
func (h *ScanHandler) GetSummary(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}

	summary, err := h.service.GetSummary(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": summary})
}
