// Package service holds the business logic: the transfer engine plus the
// balance, history and account operations around it. Storage is reached only
// through the ports in ports.go.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/goledger/internal/core/domain"
)

// TransferService moves money between two accounts as one atomic unit:
// lock both rows in canonical order, re-check funds, write the transfer,
// both balances and both ledger entries, verify, then commit. On any failure
// nothing is observable.
type TransferService struct {
	store Store
	clock Clock
}

func NewTransferService(store Store, clock Clock) *TransferService {
	if clock == nil {
		clock = SystemClock()
	}
	return &TransferService{store: store, clock: clock}
}

// CreateTransfer validates and executes a transfer of amount from fromID to
// toID. On success it returns the id of the debit transaction, which is the
// handle callers use to refer to the transfer. (The Transfer row has its own
// id; the debit entry's id is the external contract here, and the two are not
// interchangeable.)
func (s *TransferService) CreateTransfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal) (uuid.UUID, error) {
	// Fail-fast validation pass. The balance read here is advisory only:
	// it can go stale before we hold the locks, so the authoritative check
	// happens again inside Locked.
	from, err := s.store.Accounts().Get(ctx, fromID)
	if errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, domain.NotFound("From account not found")
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load source account: %w", err)
	}

	to, err := s.store.Accounts().Get(ctx, toID)
	if errors.Is(err, domain.ErrNotFound) {
		return uuid.Nil, domain.NotFound("To account not found")
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("load destination account: %w", err)
	}

	if !amount.IsPositive() {
		return uuid.Nil, domain.InvalidArgument("Transfer amount must be positive")
	}
	if from.ID == to.ID {
		return uuid.Nil, domain.InvalidArgument("Cannot transfer to the same account")
	}
	if from.Balance.LessThan(amount) {
		return uuid.Nil, domain.InvalidArgument("Insufficient balance in the source account")
	}

	var debitID uuid.UUID
	err = s.store.Locked(ctx, []uuid.UUID{fromID, toID}, func(st Stores) error {
		// Re-read under lock; the advisory values above are dead now.
		from, err := st.Accounts().Get(ctx, fromID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound("From account not found")
		}
		if err != nil {
			return fmt.Errorf("reload source account: %w", err)
		}

		to, err := st.Accounts().Get(ctx, toID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NotFound("To account not found")
		}
		if err != nil {
			return fmt.Errorf("reload destination account: %w", err)
		}

		if from.Balance.LessThan(amount) {
			return domain.InvalidArgument("Insufficient balance in the source account")
		}

		now := s.clock.Now()

		tr := &domain.Transfer{
			ID:            uuid.New(),
			FromAccountID: from.ID,
			ToAccountID:   to.ID,
			Amount:        amount,
			CreatedAt:     now,
		}
		if _, err := st.Transfers().Save(ctx, tr); err != nil {
			return fmt.Errorf("save transfer: %w", err)
		}

		from.Balance = from.Balance.Sub(amount)
		if _, err := st.Accounts().Save(ctx, from); err != nil {
			return fmt.Errorf("debit source account: %w", err)
		}

		debit := &domain.Transaction{
			ID:         uuid.New(),
			AccountID:  from.ID,
			Direction:  domain.DirectionDebit,
			Amount:     amount,
			Category:   domain.CategoryTransferOut,
			TransferID: tr.ID,
			Status:     domain.StatusSuccess,
			CreatedAt:  now,
		}
		if _, err := st.Ledger().Append(ctx, debit); err != nil {
			return fmt.Errorf("append debit entry: %w", err)
		}

		to.Balance = to.Balance.Add(amount)
		if _, err := st.Accounts().Save(ctx, to); err != nil {
			return fmt.Errorf("credit destination account: %w", err)
		}

		credit := &domain.Transaction{
			ID:         uuid.New(),
			AccountID:  to.ID,
			Direction:  domain.DirectionCredit,
			Amount:     amount,
			Category:   domain.CategoryTransferIn,
			TransferID: tr.ID,
			Status:     domain.StatusSuccess,
			CreatedAt:  now,
		}
		if _, err := st.Ledger().Append(ctx, credit); err != nil {
			return fmt.Errorf("append credit entry: %w", err)
		}

		if err := verifyTransfer(ctx, st, from, to, debit.ID, credit.ID); err != nil {
			return err
		}

		debitID = debit.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return debitID, nil
}

// verifyTransfer re-reads both accounts and both ledger entries and compares
// them to what was just written. With an atomic unit of work this can only
// fail on a storage bug, so it reports domain.ErrInternal; the caller's
// returned error then rolls the whole unit back.
func verifyTransfer(ctx context.Context, st Stores, wantFrom, wantTo *domain.Account, debitID, creditID uuid.UUID) error {
	fromCheck, err := st.Accounts().Get(ctx, wantFrom.ID)
	if err != nil {
		return domain.Internal("Balance mismatch after transfer")
	}
	toCheck, err := st.Accounts().Get(ctx, wantTo.ID)
	if err != nil {
		return domain.Internal("Balance mismatch after transfer")
	}
	if !fromCheck.Balance.Equal(wantFrom.Balance) || !toCheck.Balance.Equal(wantTo.Balance) {
		return domain.Internal("Balance mismatch after transfer")
	}

	debitExists, err := st.Ledger().Exists(ctx, debitID)
	if err != nil {
		return domain.Internal("Transaction records missing after transfer")
	}
	creditExists, err := st.Ledger().Exists(ctx, creditID)
	if err != nil {
		return domain.Internal("Transaction records missing after transfer")
	}
	if !debitExists || !creditExists {
		return domain.Internal("Transaction records missing after transfer")
	}
	return nil
}
