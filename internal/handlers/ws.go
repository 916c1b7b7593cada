package handlers

import (
	"log"

	"conference-backend/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebSocketHandler runs one signaling channel: a read loop feeding the
// relay, with presence and ledger cleanup on close.
func WebSocketHandler(tracker *PresenceTracker, ledger Ledger) fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := NewClient(conn)

		// An authenticated upgrade pins the channel's identity; socket-only
		// participants announce theirs in the join event instead.
		if uid, ok := conn.Locals("user_id").(string); ok {
			client.UserID = uid
		}
		if name, ok := conn.Locals("username").(string); ok {
			client.Username = name
		}

		defer func() {
			HandleDisconnect(client, tracker, ledger)
			conn.Close()
		}()

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				break
			}
			if msgType != websocket.TextMessage {
				continue
			}
			HandleSignal(client, msg, tracker, ledger)
		}
	})
}

// WSUpgradeMiddleware upgrades the connection to WebSocket
func WSUpgradeMiddleware(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// AuthMiddleware verifies the JWT token and stores the identity in locals.
func AuthMiddleware(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing token"})
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}

	uid, ok := claims["user_id"].(string)
	if !ok || uid == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token claims"})
	}
	c.Locals("user_id", uid)
	if name, ok := claims["username"].(string); ok {
		c.Locals("username", name)
	}

	return c.Next()
}

// OptionalAuthMiddleware decodes a token when one is present but lets
// anonymous requests through. Room listing and the websocket upgrade use it:
// anonymous callers see only public rooms, and socket-only participants get
// a placeholder identity on join.
func OptionalAuthMiddleware(c *fiber.Ctx) error {
	token := bearerToken(c)
	if token == "" {
		return c.Next()
	}

	claims, err := services.ValidateToken(token)
	if err != nil {
		return c.Next()
	}
	if uid, ok := claims["user_id"].(string); ok && uid != "" {
		c.Locals("user_id", uid)
	}
	if name, ok := claims["username"].(string); ok {
		c.Locals("username", name)
	}
	return c.Next()
}

// bearerToken pulls the token from the access_token query param or the
// Authorization header.
func bearerToken(c *fiber.Ctx) string {
	if token := c.Query("access_token"); token != "" {
		return token
	}
	authHeader := c.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return ""
}
