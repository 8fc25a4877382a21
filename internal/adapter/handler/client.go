package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/oniongate/satstore/internal/adapter/middleware"
	"github.com/oniongate/satstore/internal/core/identity"
	"github.com/oniongate/satstore/internal/core/ports"
)

type ClientHandler struct {
	Resolver *identity.Resolver
	Orders   ports.OrderRepository
}

// Self reports the caller's anonymous identity: opaque identifier, masked
// fingerprint, best-effort Tor flag and prior order count. Nothing here
// reveals the session token or the raw IP.
func (h *ClientHandler) Self(c *fiber.Ctx) error {
	client := middleware.ClientFromCtx(c)

	orderCount, err := h.Orders.CountByClient(c.Context(), client.ID)
	if err != nil {
		return failFromErr(c, err)
	}

	return ok(c, fiber.Map{
		"client_id":   client.AnonymousID(),
		"fingerprint": client.MaskedFingerprint(),
		"tor_exit":    h.Resolver.TorExitLikely(c.Context(), middleware.IPFromCtx(c)),
		"order_count": orderCount,
		"created_at":  client.CreatedAt,
		"last_active": client.LastActive,
	})
}
