package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/goledger/internal/core/service"
)

// WebhookEnqueuer records an outbound webhook for later delivery.
type WebhookEnqueuer interface {
	Enqueue(ctx context.Context, url string, payload any) error
}

type TransferHandler struct {
	Service *service.TransferService

	// Webhooks are optional: left nil (or with an empty URL) the handler
	// simply skips notification.
	Webhooks   WebhookEnqueuer
	WebhookURL string
}

type CreateTransferRequest struct {
	FromID string          `json:"from_id"`
	ToID   string          `json:"to_id"`
	Amount decimal.Decimal `json:"amount"`
}

func (h *TransferHandler) CreateTransfer(c *fiber.Ctx) error {
	var req CreateTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	fromID, err := uuid.Parse(req.FromID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid from_id"})
	}
	toID, err := uuid.Parse(req.ToID)
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid to_id"})
	}

	transferID, err := h.Service.CreateTransfer(c.Context(), fromID, toID, req.Amount)
	if err != nil {
		slog.Warn("Transfer rejected", "error", err, "from", fromID, "to", toID)
		return writeError(c, err)
	}

	slog.Info("Transfer committed", "transfer_id", transferID, "from", fromID, "to", toID, "amount", req.Amount)
	h.notify(c.Context(), transferID, fromID, toID, req.Amount)

	return c.JSON(fiber.Map{
		"transfer_id": transferID,
		"status":      "success",
		"message":     "Transfer successful",
	})
}

// notify enqueues a transfer.completed webhook. Best effort: the transfer is
// already committed, so a failed enqueue is logged and swallowed.
func (h *TransferHandler) notify(ctx context.Context, transferID, fromID, toID uuid.UUID, amount decimal.Decimal) {
	if h.Webhooks == nil || h.WebhookURL == "" {
		return
	}
	payload := map[string]any{
		"event": "transfer.completed",
		"data": map[string]any{
			"transfer_id": transferID,
			"from_id":     fromID,
			"to_id":       toID,
			"amount":      amount,
			"timestamp":   time.Now().UTC(),
		},
	}
	if err := h.Webhooks.Enqueue(ctx, h.WebhookURL, payload); err != nil {
		slog.Error("Failed to enqueue webhook", "error", err, "transfer_id", transferID)
	}
}
