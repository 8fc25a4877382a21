package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/oniongate/satstore/internal/adapter/middleware"
	"github.com/oniongate/satstore/internal/core/domain"
	"github.com/oniongate/satstore/internal/core/order"
)

type OrderHandler struct {
	Orders *order.Manager
}

type createOrderRequest struct {
	DeliveryOption string `json:"delivery_option"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	var req createOrderRequest
	// An empty body is fine; the delivery option then defaults.
	_ = c.BodyParser(&req)

	ord, items, err := h.Orders.Create(c.Context(), middleware.ClientFromCtx(c), req.DeliveryOption)
	if err != nil {
		return failFromErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"order":   orderJSON(ord, items),
	})
}

func (h *OrderHandler) Status(c *fiber.Ctx) error {
	number, err := parseOrderNumber(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid order number")
	}

	result, err := h.Orders.CheckStatus(c.Context(), number)
	if err != nil {
		return failFromErr(c, err)
	}
	return ok(c, fiber.Map{
		"order_number":    result.Order.Number,
		"status":          result.Order.Status,
		"tx_ref":          result.Order.TxRef,
		"amount_btc":      result.Order.TotalBTC.String(),
		"amount_sats":     result.Order.AmountSats,
		"bitcoin_address": result.Order.BitcoinAddress,
		"expired":         result.Expired,
	})
}

func (h *OrderHandler) Detail(c *fiber.Ctx) error {
	number, err := parseOrderNumber(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid order number")
	}

	ord, items, err := h.Orders.Get(c.Context(), number)
	if err != nil {
		return failFromErr(c, err)
	}
	return ok(c, fiber.Map{
		"order":       orderJSON(ord, items),
		"payment_uri": ord.PaymentURI(),
	})
}

// QR renders the payment URI as a PNG for wallet scanning.
func (h *OrderHandler) QR(c *fiber.Ctx) error {
	number, err := parseOrderNumber(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid order number")
	}

	ord, _, err := h.Orders.Get(c.Context(), number)
	if err != nil {
		return failFromErr(c, err)
	}

	png, err := qrcode.Encode(ord.PaymentURI(), qrcode.Medium, 256)
	if err != nil {
		return failFromErr(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	number, err := parseOrderNumber(c)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid order number")
	}

	ord, err := h.Orders.Cancel(c.Context(), middleware.ClientFromCtx(c), number)
	if err != nil {
		return failFromErr(c, err)
	}
	return ok(c, fiber.Map{
		"order_number": ord.Number,
		"status":       ord.Status,
	})
}

func parseOrderNumber(c *fiber.Ctx) (uuid.UUID, error) {
	return uuid.Parse(c.Params("number"))
}

func orderJSON(o *domain.Order, items []domain.OrderItem) fiber.Map {
	lines := make([]fiber.Map, 0, len(items))
	for i := range items {
		item := &items[i]
		lines = append(lines, fiber.Map{
			"product_id":   item.ProductID,
			"product_name": item.ProductName,
			"quantity":     item.Quantity,
			"unit_price":   item.UnitPrice.String(),
			"unit_btc":     item.UnitBTC.String(),
			"total":        item.Total().String(),
			"total_btc":    item.TotalBTC().String(),
		})
	}
	return fiber.Map{
		"order_number":    o.Number,
		"status":          o.Status,
		"delivery_option": o.DeliveryOption,
		"total":           o.Total.String(),
		"total_btc":       o.TotalBTC.String(),
		"amount_sats":     o.AmountSats,
		"bitcoin_address": o.BitcoinAddress,
		"created_at":      o.CreatedAt,
		"expires_at":      o.ExpiresAt,
		"items":           lines,
	}
}
