package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/goledger/internal/core/domain"
)

// AccountStore is the durable id -> balance mapping.
// Get returns an error matching domain.ErrNotFound when the id is unknown.
type AccountStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	Save(ctx context.Context, acct *domain.Account) (*domain.Account, error)
}

// LedgerStore is the append-only transaction log.
type LedgerStore interface {
	Append(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	// QueryByAccount returns the account's transactions newest first, with a
	// zero-based page index. Pages past the end yield an empty slice.
	QueryByAccount(ctx context.Context, accountID uuid.UUID, page, size int) ([]domain.Transaction, error)
}

// TransferStore persists transfer intents.
type TransferStore interface {
	Save(ctx context.Context, tr *domain.Transfer) (*domain.Transfer, error)
}

// Stores bundles the three stores behind one handle.
type Stores interface {
	Accounts() AccountStore
	Ledger() LedgerStore
	Transfers() TransferStore
}

// Store adds exclusive multi-account access on top of Stores.
//
// Locked acquires the given accounts in canonical order (ascending id),
// independent of which is source or destination, then runs fn. Every write
// made through the Stores handed to fn becomes visible to other readers only
// if fn returns nil; any error discards all of them. Reads inside fn observe
// the writes staged so far by the same fn.
type Store interface {
	Stores
	Locked(ctx context.Context, ids []uuid.UUID, fn func(Stores) error) error
}
