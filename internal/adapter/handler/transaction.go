package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/goledger/internal/core/service"
)

type TransactionHandler struct {
	Service *service.HistoryService
}

// GetHistory returns one page of an account's ledger, newest first.
// An unknown account yields an empty page rather than a 404.
func (h *TransactionHandler) GetHistory(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}

	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", service.DefaultPageSize)

	transactions, err := h.Service.GetHistory(c.Context(), accountID, page, size)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"account_id":   accountID,
		"transactions": transactions,
	})
}
