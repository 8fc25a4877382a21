package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/oniongate/satstore/internal/adapter/middleware"
	"github.com/oniongate/satstore/internal/core/messaging"
)

type MessageHandler struct {
	Messages *messaging.Service
}

type sendMessageRequest struct {
	OrderNumber string `json:"order_number"`
	MessageType string `json:"message_type"`
	Content     string `json:"content"`
}

func (h *MessageHandler) Send(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	orderNumber, err := uuid.Parse(req.OrderNumber)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid order number")
	}

	msg, err := h.Messages.Attach(c.Context(), middleware.ClientFromCtx(c), orderNumber, req.MessageType, req.Content)
	if err != nil {
		return failFromErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":      true,
		"message_id":   msg.ID,
		"message_type": msg.MessageType,
		"expires_at":   msg.ExpiresAt,
	})
}

func (h *MessageHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid message id")
	}

	msg, content, expired, err := h.Messages.Get(c.Context(), middleware.ClientFromCtx(c), id)
	if err != nil {
		return failFromErr(c, err)
	}
	return ok(c, fiber.Map{
		"message_id":   msg.ID,
		"message_type": msg.MessageType,
		"content":      content,
		"created_at":   msg.CreatedAt,
		"expires_at":   msg.ExpiresAt,
		"expired":      expired,
	})
}
