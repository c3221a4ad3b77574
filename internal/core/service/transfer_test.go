package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibrahimkeyboad/goledger/internal/adapter/storage"
	"github.com/ibrahimkeyboad/goledger/internal/core/domain"
	"github.com/ibrahimkeyboad/goledger/internal/core/service"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

// newAccount provisions an account and sets its starting balance through the
// admin override, the same way operators seed accounts.
func newAccount(t *testing.T, store service.Store, owner, balance string) *domain.Account {
	t.Helper()
	accounts := service.NewAccountService(store, fixedClock{testTime})
	acct, err := accounts.CreateAccount(context.Background(), owner)
	require.NoError(t, err)
	if balance != "0" {
		require.NoError(t, accounts.OverrideBalance(context.Background(), acct.ID, dec(t, balance)))
	}
	return acct
}

func balanceOf(t *testing.T, store service.Store, id uuid.UUID) decimal.Decimal {
	t.Helper()
	bal, err := service.NewAccountService(store, nil).GetBalance(context.Background(), id)
	require.NoError(t, err)
	return bal
}

func historyOf(t *testing.T, store service.Store, id uuid.UUID) []domain.Transaction {
	t.Helper()
	txns, err := service.NewHistoryService(store).GetHistory(context.Background(), id, 0, 100)
	require.NoError(t, err)
	return txns
}

func TestCreateTransferMovesFunds(t *testing.T) {
	t.Parallel()
	store := storage.NewMemoryStore()
	a := newAccount(t, store, "alice", "1000")
	b := newAccount(t, store, "bob", "500")

	svc := service.NewTransferService(store, fixedClock{testTime})
	transferID, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "300"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, transferID)

	assert.True(t, balanceOf(t, store, a.ID).Equal(dec(t, "700")), "source balance")
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec(t, "800")), "destination balance")

	aHist := historyOf(t, store, a.ID)
	require.Len(t, aHist, 1)
	debit := aHist[0]
	assert.Equal(t, domain.DirectionDebit, debit.Direction)
	assert.Equal(t, domain.CategoryTransferOut, debit.Category)
	assert.Equal(t, domain.StatusSuccess, debit.Status)
	assert.True(t, debit.Amount.Equal(dec(t, "300")))
	assert.Equal(t, a.ID, debit.AccountID)
	assert.Equal(t, testTime, debit.CreatedAt)

	bHist := historyOf(t, store, b.ID)
	require.Len(t, bHist, 1)
	credit := bHist[0]
	assert.Equal(t, domain.DirectionCredit, credit.Direction)
	assert.Equal(t, domain.CategoryTransferIn, credit.Category)
	assert.Equal(t, domain.StatusSuccess, credit.Status)
	assert.True(t, credit.Amount.Equal(dec(t, "300")))
	assert.Equal(t, b.ID, credit.AccountID)

	// both sides of one transfer
	assert.Equal(t, debit.TransferID, credit.TransferID)
	assert.NotEqual(t, debit.ID, credit.ID)

	// the returned handle is the debit entry's id
	assert.Equal(t, debit.ID, transferID)
}

func TestCreateTransferValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(t *testing.T, store service.Store) (from, to uuid.UUID)
		amount   string
		wantKind error
		wantMsg  string
	}{
		{
			name: "unknown source reported before anything else",
			setup: func(t *testing.T, store service.Store) (uuid.UUID, uuid.UUID) {
				b := newAccount(t, store, "bob", "500")
				return uuid.New(), b.ID
			},
			// a bad amount too: source resolution must win
			amount:   "-5",
			wantKind: domain.ErrNotFound,
			wantMsg:  "From account not found",
		},
		{
			name: "unknown destination",
			setup: func(t *testing.T, store service.Store) (uuid.UUID, uuid.UUID) {
				a := newAccount(t, store, "alice", "1000")
				return a.ID, uuid.New()
			},
			amount:   "100",
			wantKind: domain.ErrNotFound,
			wantMsg:  "To account not found",
		},
		{
			name: "zero amount",
			setup: func(t *testing.T, store service.Store) (uuid.UUID, uuid.UUID) {
				a := newAccount(t, store, "alice", "1000")
				b := newAccount(t, store, "bob", "500")
				return a.ID, b.ID
			},
			amount:   "0",
			wantKind: domain.ErrInvalidArgument,
			wantMsg:  "Transfer amount must be positive",
		},
		{
			name: "negative amount",
			setup: func(t *testing.T, store service.Store) (uuid.UUID, uuid.UUID) {
				a := newAccount(t, store, "alice", "1000")
				b := newAccount(t, store, "bob", "500")
				return a.ID, b.ID
			},
			amount:   "-1",
			wantKind: domain.ErrInvalidArgument,
			wantMsg:  "Transfer amount must be positive",
		},
		{
			name: "self transfer rejected regardless of balance",
			setup: func(t *testing.T, store service.Store) (uuid.UUID, uuid.UUID) {
				a := newAccount(t, store, "alice", "0")
				return a.ID, a.ID
			},
			amount:   "100",
			wantKind: domain.ErrInvalidArgument,
			wantMsg:  "Cannot transfer to the same account",
		},
		{
			name: "insufficient balance",
			setup: func(t *testing.T, store service.Store) (uuid.UUID, uuid.UUID) {
				a := newAccount(t, store, "alice", "1000")
				b := newAccount(t, store, "bob", "500")
				return a.ID, b.ID
			},
			amount:   "2000",
			wantKind: domain.ErrInvalidArgument,
			wantMsg:  "Insufficient balance in the source account",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := storage.NewMemoryStore()
			from, to := tc.setup(t, store)

			svc := service.NewTransferService(store, fixedClock{testTime})
			_, err := svc.CreateTransfer(context.Background(), from, to, dec(t, tc.amount))
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.wantKind)
			assert.Equal(t, tc.wantMsg, err.Error())

			// a failed transfer leaves no trace
			assert.Empty(t, historyOf(t, store, from))
			assert.Empty(t, historyOf(t, store, to))
		})
	}
}

func TestCreateTransferFailureLeavesBalancesUntouched(t *testing.T) {
	t.Parallel()
	store := storage.NewMemoryStore()
	a := newAccount(t, store, "alice", "1000")
	b := newAccount(t, store, "bob", "500")

	svc := service.NewTransferService(store, fixedClock{testTime})
	_, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "2000"))
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	assert.True(t, balanceOf(t, store, a.ID).Equal(dec(t, "1000")))
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec(t, "500")))
}

func TestCreateTransferNoDeduplication(t *testing.T) {
	t.Parallel()
	store := storage.NewMemoryStore()
	a := newAccount(t, store, "alice", "1000")
	b := newAccount(t, store, "bob", "0")

	svc := service.NewTransferService(store, fixedClock{testTime})

	first, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "100"))
	require.NoError(t, err)
	second, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "100"))
	require.NoError(t, err)

	// identical requests are two independent transfers
	assert.NotEqual(t, first, second)
	assert.True(t, balanceOf(t, store, a.ID).Equal(dec(t, "800")))
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec(t, "200")))
	assert.Len(t, historyOf(t, store, a.ID), 2)
	assert.Len(t, historyOf(t, store, b.ID), 2)
}

func TestCreateTransferExactDecimalArithmetic(t *testing.T) {
	t.Parallel()
	store := storage.NewMemoryStore()
	a := newAccount(t, store, "alice", "0.30")
	b := newAccount(t, store, "bob", "0")

	svc := service.NewTransferService(store, fixedClock{testTime})
	// 0.1 is not representable in binary floating point; three of these must
	// still drain the account to exactly zero
	for i := 0; i < 3; i++ {
		_, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "0.10"))
		require.NoError(t, err)
	}

	assert.True(t, balanceOf(t, store, a.ID).IsZero(), "source should be exactly zero, got %s", balanceOf(t, store, a.ID))
	assert.True(t, balanceOf(t, store, b.ID).Equal(dec(t, "0.30")))

	_, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "0.01"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	t.Parallel()
	store := storage.NewMemoryStore()
	a := newAccount(t, store, "alice", "1000")
	b := newAccount(t, store, "bob", "1000")

	svc := service.NewTransferService(store, service.SystemClock())

	const n = 200
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if _, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "1")); err != nil {
				t.Errorf("a->b: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.CreateTransfer(context.Background(), b.ID, a.ID, dec(t, "1")); err != nil {
				t.Errorf("b->a: %v", err)
			}
		}()
	}
	wg.Wait()

	balA := balanceOf(t, store, a.ID)
	balB := balanceOf(t, store, b.ID)
	assert.False(t, balA.IsNegative(), "a went negative: %s", balA)
	assert.False(t, balB.IsNegative(), "b went negative: %s", balB)
	assert.True(t, balA.Add(balB).Equal(dec(t, "2000")), "total changed: %s + %s", balA, balB)

	assert.Len(t, historyOf(t, store, a.ID), 2*n)
	assert.Len(t, historyOf(t, store, b.ID), 2*n)
}

// lyingLedger reports every entry as missing, which must trip the post-write
// verification and roll the transfer back.
type lyingLedger struct{ service.LedgerStore }

func (l lyingLedger) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

// droppingAccounts acknowledges balance writes without persisting them.
type droppingAccounts struct{ service.AccountStore }

func (a droppingAccounts) Save(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	saved := acct.Clone()
	saved.Version++
	return saved, nil
}

type corruptStores struct {
	service.Stores
	ledger   func(service.LedgerStore) service.LedgerStore
	accounts func(service.AccountStore) service.AccountStore
}

func (s corruptStores) Ledger() service.LedgerStore {
	if s.ledger != nil {
		return s.ledger(s.Stores.Ledger())
	}
	return s.Stores.Ledger()
}

func (s corruptStores) Accounts() service.AccountStore {
	if s.accounts != nil {
		return s.accounts(s.Stores.Accounts())
	}
	return s.Stores.Accounts()
}

type corruptStore struct {
	service.Store
	wrap func(service.Stores) service.Stores
}

func (s corruptStore) Locked(ctx context.Context, ids []uuid.UUID, fn func(service.Stores) error) error {
	return s.Store.Locked(ctx, ids, func(st service.Stores) error {
		return fn(s.wrap(st))
	})
}

func TestVerificationMissingEntriesRollsBack(t *testing.T) {
	t.Parallel()
	mem := storage.NewMemoryStore()
	a := newAccount(t, mem, "alice", "1000")
	b := newAccount(t, mem, "bob", "500")

	store := corruptStore{Store: mem, wrap: func(st service.Stores) service.Stores {
		return corruptStores{Stores: st, ledger: func(l service.LedgerStore) service.LedgerStore {
			return lyingLedger{l}
		}}
	}}

	svc := service.NewTransferService(store, fixedClock{testTime})
	_, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "300"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.Equal(t, "Transaction records missing after transfer", err.Error())

	// everything rolled back
	assert.True(t, balanceOf(t, mem, a.ID).Equal(dec(t, "1000")))
	assert.True(t, balanceOf(t, mem, b.ID).Equal(dec(t, "500")))
	assert.Empty(t, historyOf(t, mem, a.ID))
	assert.Empty(t, historyOf(t, mem, b.ID))
}

func TestVerificationBalanceMismatchRollsBack(t *testing.T) {
	t.Parallel()
	mem := storage.NewMemoryStore()
	a := newAccount(t, mem, "alice", "1000")
	b := newAccount(t, mem, "bob", "500")

	store := corruptStore{Store: mem, wrap: func(st service.Stores) service.Stores {
		return corruptStores{Stores: st, accounts: func(as service.AccountStore) service.AccountStore {
			return droppingAccounts{as}
		}}
	}}

	svc := service.NewTransferService(store, fixedClock{testTime})
	_, err := svc.CreateTransfer(context.Background(), a.ID, b.ID, dec(t, "300"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInternal)
	assert.Equal(t, "Balance mismatch after transfer", err.Error())

	assert.True(t, balanceOf(t, mem, a.ID).Equal(dec(t, "1000")))
	assert.True(t, balanceOf(t, mem, b.ID).Equal(dec(t, "500")))
	assert.Empty(t, historyOf(t, mem, a.ID))
	assert.Empty(t, historyOf(t, mem, b.ID))
}
