package middleware

import (
	"strings"

	"go-dispatch-ws/internal/model"
	"go-dispatch-ws/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

const (
	localActor    = "actor"
	localStoreIDs = "actor_store_ids"
)

// RequireAuth validates the bearer token and records the operator in the
// request context. Browsers cannot set headers on a websocket upgrade, so a
// token query parameter is accepted there.
func RequireAuth(tokens *jwt.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}

		claims, err := tokens.ValidateToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		name := claims.Name
		if name == "" {
			name = claims.UserID
		}
		c.Locals(localActor, model.Actor{ID: claims.UserID, Name: name, Email: claims.Email})
		c.Locals(localStoreIDs, claims.StoreIDs)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", jwt.ErrMissingToken
	}

	// "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", fiber.NewError(fiber.StatusUnauthorized, "Invalid authorization format. Use: Bearer <token>")
	}
	return parts[1], nil
}

// ActorFrom returns the operator set by RequireAuth.
func ActorFrom(c *fiber.Ctx) (model.Actor, bool) {
	actor, ok := c.Locals(localActor).(model.Actor)
	return actor, ok
}

// StoreScopeFrom returns the store ids carried by the token, if any.
func StoreScopeFrom(c *fiber.Ctx) []string {
	ids, _ := c.Locals(localStoreIDs).([]string)
	return ids
}
