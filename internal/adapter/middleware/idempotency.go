package middleware

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// IdempotencyStore persists responses keyed by (client, idempotency key).
// Lookup returns NotFoundError when no response was recorded for the key.
type IdempotencyStore interface {
	LookupResponse(ctx context.Context, clientID uuid.UUID, key string) (status int, body []byte, err error)
	SaveResponse(ctx context.Context, clientID uuid.UUID, key string, status int, body []byte) error
}

// Idempotency replays the cached response for a repeated Idempotency-Key
// from the same client, so a blind retry of order creation cannot create a
// second order. Only successful responses are recorded; a failed attempt
// leaves the key free so the client can retry after fixing the request.
// Requests without a key pass through.
func Idempotency(store IdempotencyStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.Get("Idempotency-Key")
		if key == "" {
			return c.Next()
		}

		client := ClientFromCtx(c)
		if client == nil {
			return c.Next()
		}

		status, body, err := store.LookupResponse(c.Context(), client.ID, key)
		if err == nil {
			c.Set("X-Idempotency-Hit", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(status).Send(body)
		}

		if err := c.Next(); err != nil {
			return err
		}

		resStatus := c.Response().StatusCode()
		if resStatus < 200 || resStatus >= 300 {
			return nil
		}

		resBody := append([]byte(nil), c.Response().Body()...)
		if err := store.SaveResponse(c.Context(), client.ID, key, resStatus, resBody); err != nil {
			slog.Error("failed to save idempotency key", "error", err, "key", key)
		}
		return nil
	}
}
