package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/core/domain"
	"github.com/oniongate/satstore/internal/core/ports"
)

type ProductHandler struct {
	Products ports.ProductRepository
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	products, err := h.Products.ListActive(c.Context())
	if err != nil {
		return failFromErr(c, err)
	}

	out := make([]fiber.Map, 0, len(products))
	for i := range products {
		out = append(out, productJSON(&products[i]))
	}
	return ok(c, fiber.Map{"products": out})
}

func (h *ProductHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid product id")
	}

	product, err := h.Products.GetByID(c.Context(), id)
	if err != nil {
		return failFromErr(c, err)
	}
	if !product.IsActive {
		return fail(c, fiber.StatusNotFound, "product not found")
	}
	return ok(c, fiber.Map{"product": productJSON(product)})
}

func productJSON(p *domain.Product) fiber.Map {
	return fiber.Map{
		"id":             p.ID,
		"name":           p.Name,
		"description":    p.Description,
		"price":          p.Price.String(),
		"price_btc":      p.PriceBTC.String(),
		"stock_quantity": p.StockQuantity,
		"max_per_order":  p.MaxPerOrder,
	}
}
