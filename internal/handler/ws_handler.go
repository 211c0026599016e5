package handler

import (
	"strings"

	"go-dispatch-ws/internal/middleware"
	"go-dispatch-ws/internal/ws"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const localWSStores = "ws_stores"

type WSHandler struct {
	hub *ws.Hub
}

func NewWSHandler(hub *ws.Hub) *WSHandler {
	return &WSHandler{hub: hub}
}

// Upgrade resolves the store filter and rejects plain HTTP requests.
// Query params: store_id (repeatable or comma separated). Without it the
// token's store scope applies; a token without scope sees every store.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	stores, err := wsStores(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if !withinScope(stores, middleware.StoreScopeFrom(c)) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "store_id outside token scope"})
	}
	if !websocket.IsWebSocketUpgrade(c) {
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}
	c.Locals(localWSStores, stores)
	return c.Next()
}

// Serve is the websocket endpoint. Client messages are read only to detect disconnects.
func (h *WSHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		stores, _ := conn.Locals(localWSStores).([]uuid.UUID)
		client := ws.NewClient(conn, stores)
		h.hub.Register(client)
		defer h.hub.Unregister(client)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	})
}

func wsStores(c *fiber.Ctx) ([]uuid.UUID, error) {
	var raw []string
	for _, v := range c.Context().QueryArgs().PeekMulti("store_id") {
		raw = append(raw, strings.Split(string(v), ",")...)
	}
	if len(raw) == 0 {
		raw = middleware.StoreScopeFrom(c)
	}

	stores := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid store_id "+s)
		}
		stores = append(stores, id)
	}
	return stores, nil
}

func withinScope(stores []uuid.UUID, scope []string) bool {
	if len(scope) == 0 {
		return true
	}
	allowed := make(map[string]struct{}, len(scope))
	for _, s := range scope {
		allowed[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	if len(stores) == 0 {
		return false
	}
	for _, id := range stores {
		if _, ok := allowed[id.String()]; !ok {
			return false
		}
	}
	return true
}
