package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction tells which side of a transfer a ledger entry records.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Category classifies a ledger entry.
type Category string

const (
	CategoryTransferOut Category = "transfer_out"
	CategoryTransferIn  Category = "transfer_in"
)

// Status of a ledger entry.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Transfer is a single funds-movement intent between two accounts.
// It is immutable once created and always resolves to exactly two
// Transactions: a debit on the source and a credit on the destination.
type Transfer struct {
	ID            uuid.UUID       `json:"id"`
	FromAccountID uuid.UUID       `json:"from_account_id"`
	ToAccountID   uuid.UUID       `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Transaction is one immutable ledger entry: one side of a transfer,
// against one account. The ledger is append-only.
type Transaction struct {
	ID          uuid.UUID       `json:"id"`
	AccountID   uuid.UUID       `json:"account_id"`
	Direction   Direction       `json:"direction"`
	Amount      decimal.Decimal `json:"amount"`
	Category    Category        `json:"category"`
	TransferID  uuid.UUID       `json:"transfer_id"`
	Status      Status          `json:"status"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
