package handler

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/goledger/internal/core/service"
)

type AccountHandler struct {
	Service *service.AccountService
}

type CreateAccountRequest struct {
	OwnerName string `json:"owner_name"`
}

type OverrideBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

func (h *AccountHandler) CreateAccount(c *fiber.Ctx) error {
	var req CreateAccountRequest
	if err := c.BodyParser(&req); err != nil {
		slog.Warn("Invalid account body", "error", err)
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if req.OwnerName == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Owner name is required"})
	}

	account, err := h.Service.CreateAccount(c.Context(), req.OwnerName)
	if err != nil {
		slog.Error("Failed to create account", "error", err, "owner", req.OwnerName)
		return writeError(c, err)
	}

	slog.Info("Account created", "id", account.ID, "owner", req.OwnerName)
	return c.Status(http.StatusCreated).JSON(account)
}

func (h *AccountHandler) GetBalance(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}

	balance, err := h.Service.GetBalance(c.Context(), accountID)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(fiber.Map{
		"account_id": accountID,
		"balance":    balance,
	})
}

// OverrideBalance sets a balance directly. Admin path; it bypasses the ledger
// on purpose, so nothing here shows up in transaction history.
func (h *AccountHandler) OverrideBalance(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid account ID"})
	}

	var req OverrideBalanceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.Service.OverrideBalance(c.Context(), accountID, req.Balance); err != nil {
		return writeError(c, err)
	}

	slog.Info("Balance overridden", "account_id", accountID, "balance", req.Balance)
	return c.JSON(fiber.Map{"status": "success"})
}
