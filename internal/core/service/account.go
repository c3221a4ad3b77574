package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/goledger/internal/core/domain"
)

// AccountService covers provisioning and the read path over balances.
// Reads never take the exclusive lock; they observe only committed state.
type AccountService struct {
	store Store
	clock Clock
}

func NewAccountService(store Store, clock Clock) *AccountService {
	if clock == nil {
		clock = SystemClock()
	}
	return &AccountService{store: store, clock: clock}
}

// CreateAccount provisions a new account with a zero balance.
func (s *AccountService) CreateAccount(ctx context.Context, ownerName string) (*domain.Account, error) {
	acct := &domain.Account{
		ID:        uuid.New(),
		OwnerName: ownerName,
		Balance:   decimal.Zero,
		CreatedAt: s.clock.Now(),
	}
	saved, err := s.store.Accounts().Save(ctx, acct)
	if err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return saved, nil
}

// GetBalance returns the account's committed balance.
func (s *AccountService) GetBalance(ctx context.Context, id uuid.UUID) (decimal.Decimal, error) {
	acct, err := s.store.Accounts().Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return decimal.Zero, domain.NotFound("Account not found")
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("load account: %w", err)
	}
	return acct.Balance, nil
}

// OverrideBalance sets an account's balance directly. This is the admin path,
// not a transfer: it writes no ledger entries, but it still locks the account
// so it cannot interleave with an in-flight transfer.
func (s *AccountService) OverrideBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	if balance.IsNegative() {
		return domain.InvalidArgument("Balance cannot be negative")
	}
	return s.store.Locked(ctx, []uuid.UUID{id}, func(st Stores) error {
		acct, err := st.Accounts().Get(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound("Account not found")
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		acct.Balance = balance
		if _, err := st.Accounts().Save(ctx, acct); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		return nil
	})
}
