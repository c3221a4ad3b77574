package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account holds one customer's balance.
// Balance is an exact decimal (never a float), stored in major units.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	OwnerName string          `json:"owner_name"`
	Balance   decimal.Decimal `json:"balance"`
	// Version increases by one on every balance write. A save whose version
	// does not match the stored row is rejected, so a lost update surfaces
	// as an error instead of silently clobbering money.
	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns an independent copy, so callers can mutate freely without
// reaching into store-owned state.
func (a *Account) Clone() *Account {
	cp := *a
	return &cp
}
