package handler

import (
	"go-dispatch-ws/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type StatisticsHandler struct {
	service service.StatisticsService
	errorResponder
}

func NewStatisticsHandler(s service.StatisticsService, log *zap.Logger) *StatisticsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &StatisticsHandler{service: s, errorResponder: errorResponder{log: log}}
}

// GetStatistics returns dispatch counts and values
// Query params: store_id (optional, matches either side of a transfer)
func (h *StatisticsHandler) GetStatistics(c *fiber.Ctx) error {
	var storeID *uuid.UUID
	if raw := c.Query("store_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return badRequest(c, "Invalid store_id")
		}
		storeID = &id
	}

	stats, err := h.service.GetStatistics(c.UserContext(), storeID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(stats)
}
