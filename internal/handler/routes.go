package handler

import (
	"go-dispatch-ws/internal/middleware"
	"go-dispatch-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Dispatch   *DispatchHandler
	Scan       *ScanHandler
	Statistics *StatisticsHandler
	WS         *WSHandler
}

// RegisterRoutes mounts the API under /api/v1 and the websocket feed at /ws.
// Every route requires a valid operator token.
func RegisterRoutes(app *fiber.App, tokens *jwt.Manager, h Handlers) {
	auth := middleware.RequireAuth(tokens)

	api := app.Group("/api/v1", auth)

	// Dispatch lifecycle
	api.Post("/dispatches", h.Dispatch.CreateDispatch)
	api.Get("/dispatches", h.Dispatch.ListDispatches)
	api.Get("/dispatches/:id", h.Dispatch.GetDispatch)
	api.Put("/dispatches/:id", h.Dispatch.UpdateDetails)
	api.Post("/dispatches/:id/items", h.Dispatch.AddItem)
	api.Delete("/dispatches/:id/items/:itemId", h.Dispatch.RemoveItem)
	api.Post("/dispatches/:id/submit", h.Dispatch.Submit)
	api.Post("/dispatches/:id/approve", h.Dispatch.Approve)
	api.Post("/dispatches/:id/dispatch", h.Dispatch.MarkDispatched)
	api.Post("/dispatches/:id/deliver", h.Dispatch.MarkDelivered)
	api.Post("/dispatches/:id/cancel", h.Dispatch.Cancel)
	api.Get("/dispatches/:id/events", h.Dispatch.ListEvents)
	api.Get("/dispatches/:id/reconciliation", h.Dispatch.GetReconciliation)
	api.Get("/dispatches/:id/reconciliation.xlsx", h.Dispatch.ExportReconciliation)

	// Barcode verification
	api.Post("/dispatches/:id/items/:itemId/scans", h.Scan.Scan)
	api.Get("/dispatches/:id/items/:itemId/scans", h.Scan.GetProgress)
	api.Get("/dispatches/:id/scans", h.Scan.GetSummary)

	// Ledger and statistics
	api.Get("/stores/:storeId/batches/available", h.Dispatch.ListAvailableBatches)
	api.Get("/statistics", h.Statistics.GetStatistics)

	// WebSocket Route
	if h.WS != nil {
		app.Get("/ws", auth, h.WS.Upgrade, h.WS.Serve())
	}
}
