package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/oniongate/satstore/internal/core/domain"
	"github.com/oniongate/satstore/internal/core/identity"
)

const (
	// SessionCookie carries the anonymous session token between requests.
	SessionCookie = "satstore_session"

	// Locals keys set for downstream handlers.
	LocalClient   = "client"
	LocalClientIP = "client_ip"
)

// Session resolves the anonymous client for every request and stores it in
// the request locals. The resolver is the only writer of client state;
// handlers receive the resolved record as an explicit context value.
func Session(resolver *identity.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(SessionCookie)
		if token == "" {
			token = c.Get("X-Session-Token")
		}
		ip := clientIP(c)

		client, err := resolver.Resolve(c.Context(), token, ip, c.Get(fiber.HeaderUserAgent))
		if err != nil {
			slog.Error("client resolution failed", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "service unavailable",
			})
		}

		if client.SessionToken != token {
			c.Cookie(&fiber.Cookie{
				Name:     SessionCookie,
				Value:    client.SessionToken,
				Expires:  time.Now().Add(365 * 24 * time.Hour),
				HTTPOnly: true,
				SameSite: fiber.CookieSameSiteLaxMode,
			})
		}

		c.Locals(LocalClient, client)
		c.Locals(LocalClientIP, ip)
		return c.Next()
	}
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection address.
func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	return c.IP()
}

// ClientFromCtx returns the resolved client stored by Session.
func ClientFromCtx(c *fiber.Ctx) *domain.Client {
	client, _ := c.Locals(LocalClient).(*domain.Client)
	return client
}

// IPFromCtx returns the caller IP stored by Session.
func IPFromCtx(c *fiber.Ctx) string {
	ip, _ := c.Locals(LocalClientIP).(string)
	return ip
}
