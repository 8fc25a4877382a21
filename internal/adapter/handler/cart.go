package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/adapter/middleware"
	"github.com/oniongate/satstore/internal/core/cart"
	"github.com/oniongate/satstore/internal/core/domain"
)

type CartHandler struct {
	Cart *cart.Manager
}

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req addItemRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid product id")
	}

	totals, err := h.Cart.AddItem(c.Context(), middleware.ClientFromCtx(c), productID, req.Quantity)
	if err != nil {
		return failFromErr(c, err)
	}
	return ok(c, totalsJSON(totals))
}

func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	productID, err := uuid.Parse(c.Params("productID"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid product id")
	}

	totals, err := h.Cart.RemoveItem(c.Context(), middleware.ClientFromCtx(c), productID)
	if err != nil {
		return failFromErr(c, err)
	}
	return ok(c, totalsJSON(totals))
}

func (h *CartHandler) Totals(c *fiber.Ctx) error {
	totals, err := h.Cart.Totals(c.Context(), middleware.ClientFromCtx(c))
	if err != nil {
		return failFromErr(c, err)
	}
	return ok(c, totalsJSON(totals))
}

func totalsJSON(t *domain.CartTotals) fiber.Map {
	return fiber.Map{
		"item_count": t.ItemCount,
		"total":      t.Total.String(),
		"total_btc":  t.TotalBTC.String(),
	}
}
