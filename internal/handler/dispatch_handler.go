package handler

import (
	"context"
	"strconv"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/internal/report"
	"go-dispatch-ws/internal/repository"
	"go-dispatch-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DispatchHandler struct {
	service service.DispatchService
	errorResponder
}

func NewDispatchHandler(s service.DispatchService, log *zap.Logger) *DispatchHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &DispatchHandler{service: s, errorResponder: errorResponder{log: log}}
}

// CreateDispatch handles POST /dispatches
func (h *DispatchHandler) CreateDispatch(c *fiber.Ctx) error {
	var req service.CreateDispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	d, err := h.service.CreateDispatch(c.UserContext(), &req, actorOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Dispatch created", "data": d})
}

// ListDispatches handles GET /dispatches
// Query params: status, source_store_id, destination_store_id, store_id, search, page, limit
func (h *DispatchHandler) ListDispatches(c *fiber.Ctx) error {
	filter := repository.DispatchFilter{
		Status: model.DispatchStatus(c.Query("status")),
		Search: c.Query("search"),
	}
	for param, dst := range map[string]**uuid.UUID{
		"source_store_id":      &filter.SourceStoreID,
		"destination_store_id": &filter.DestinationStoreID,
		"store_id":             &filter.StoreID,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid "+param)
		}
		*dst = &id
	}
	filter.Page, _ = strconv.Atoi(c.Query("page", "1"))
	filter.Limit, _ = strconv.Atoi(c.Query("limit", strconv.Itoa(repository.DefaultPageLimit)))

	page, err := h.service.ListDispatches(c.UserContext(), filter)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(page)
}

// GetDispatch handles GET /dispatches/:id where id is a uuid or a dispatch number
func (h *DispatchHandler) GetDispatch(c *fiber.Ctx) error {
	d, err := h.service.GetDispatch(c.UserContext(), c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": d})
}

// UpdateDetails handles PUT /dispatches/:id
func (h *DispatchHandler) UpdateDetails(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	var req service.UpdateDetailsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	d, err := h.service.UpdateDetails(c.UserContext(), id, &req, actorOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Dispatch updated", "data": d})
}

// AddItem handles POST /dispatches/:id/items
func (h *DispatchHandler) AddItem(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	var req service.ItemRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	d, err := h.service.AddItem(c.UserContext(), id, &req, actorOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Item added", "data": d})
}

// RemoveItem handles DELETE /dispatches/:id/items/:itemId
func (h *DispatchHandler) RemoveItem(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	itemID, ok := paramUUID(c, "itemId")
	if !ok {
		return badRequest(c, "Invalid item ID")
	}

	d, err := h.service.RemoveItem(c.UserContext(), id, itemID, actorOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Item removed", "data": d})
}

// transition runs one of the body-less transitions against the :id dispatch.
func (h *DispatchHandler) transition(c *fiber.Ctx, message string,
	fn func(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.Dispatch, error)) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	d, err := fn(c.UserContext(), id, actorOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": message, "data": d})
}

// Submit handles POST /dispatches/:id/submit
func (h *DispatchHandler) Submit(c *fiber.Ctx) error {
	return h.transition(c, "Dispatch submitted", h.service.Submit)
}

// Approve handles POST /dispatches/:id/approve
func (h *DispatchHandler) Approve(c *fiber.Ctx) error {
	return h.transition(c, "Dispatch approved", h.service.Approve)
}

// MarkDispatched handles POST /dispatches/:id/dispatch
func (h *DispatchHandler) MarkDispatched(c *fiber.Ctx) error {
	return h.transition(c, "Dispatch in transit", h.service.MarkDispatched)
}

// MarkDelivered handles POST /dispatches/:id/deliver with the receipt manifest
func (h *DispatchHandler) MarkDelivered(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	var req service.DeliverRequest
	if !parseBody(c, &req) {
		return badRequest(c, "Invalid JSON")
	}

	d, err := h.service.MarkDelivered(c.UserContext(), id, &req, actorOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Dispatch delivered", "data": d})
}

// Cancel handles POST /dispatches/:id/cancel
func (h *DispatchHandler) Cancel(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	var req service.CancelRequest
	if !parseBody(c, &req) {
		return badRequest(c, "Invalid JSON")
	}

	d, err := h.service.Cancel(c.UserContext(), id, &req, actorOf(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Dispatch cancelled", "data": d})
}

// ListEvents handles GET /dispatches/:id/events
func (h *DispatchHandler) ListEvents(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	events, err := h.service.ListEvents(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": events})
}

// GetReconciliation handles GET /dispatches/:id/reconciliation
func (h *DispatchHandler) GetReconciliation(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	sum, err := h.service.GetReconciliation(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": sum})
}

// ExportReconciliation handles GET /dispatches/:id/reconciliation.xlsx
func (h *DispatchHandler) ExportReconciliation(c *fiber.Ctx) error {
	id, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid dispatch ID")
	}
	sum, err := h.service.GetReconciliation(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}

	body, filename, err := report.Render(sum)
	if err != nil {
		return h.fail(c, err)
	}
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, report.ContentType)
	return c.Send(body)
}

// ListAvailableBatches handles GET /stores/:storeId/batches/available
func (h *DispatchHandler) ListAvailableBatches(c *fiber.Ctx) error {
	storeID, ok := paramUUID(c, "storeId")
	if !ok {
		return badRequest(c, "Invalid store ID")
	}
	batches, err := h.service.ListAvailableBatches(c.UserContext(), storeID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"data": batches})
}
