package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/goledger/internal/core/domain"
	"github.com/ibrahimkeyboad/goledger/internal/core/service"
)

// ErrVersionConflict means a balance write raced another writer. With the
// per-account locks held it cannot happen; seeing it indicates a bug.
var ErrVersionConflict = errors.New("account version conflict")

// MemoryStore keeps everything in process memory. It backs the test suite and
// local runs without a DATABASE_URL, and implements the same contract as the
// Postgres store: Locked takes the touched accounts' mutexes in ascending id
// order and stages every write in an overlay, which is applied in one critical
// section only when the callback succeeds. Readers take the state lock and so
// never observe a half-applied transfer.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]*domain.Account
	transfers map[uuid.UUID]*domain.Transfer
	entries   []domain.Transaction
	entryIDs  map[uuid.UUID]struct{}

	lockMu sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[uuid.UUID]*domain.Account),
		transfers: make(map[uuid.UUID]*domain.Transfer),
		entryIDs:  make(map[uuid.UUID]struct{}),
		locks:     make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *MemoryStore) Accounts() service.AccountStore   { return memAccounts{s} }
func (s *MemoryStore) Ledger() service.LedgerStore      { return memLedger{s} }
func (s *MemoryStore) Transfers() service.TransferStore { return memTransfers{s} }

// Locked implements the exclusive section. The per-account mutexes are always
// acquired in ascending id (byte) order regardless of the order ids were
// passed in, so two transfers over the same pair in opposite directions can
// never deadlock each other.
func (s *MemoryStore) Locked(ctx context.Context, ids []uuid.UUID, fn func(service.Stores) error) error {
	ordered := canonicalOrder(ids)

	held := make([]*sync.Mutex, 0, len(ordered))
	for _, id := range ordered {
		mu := s.accountLock(id)
		mu.Lock()
		held = append(held, mu)
	}
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}()

	otx := &memTx{
		store:     s,
		accounts:  make(map[uuid.UUID]*domain.Account),
		entryIDs:  make(map[uuid.UUID]struct{}),
		transfers: make(map[uuid.UUID]*domain.Transfer),
	}
	if err := fn(otx); err != nil {
		return err // overlay dropped: nothing staged becomes visible
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, acct := range otx.accounts {
		s.accounts[id] = acct
	}
	for id, tr := range otx.transfers {
		s.transfers[id] = tr
	}
	for _, e := range otx.entries {
		s.entries = append(s.entries, e)
		s.entryIDs[e.ID] = struct{}{}
	}
	return nil
}

// accountLock returns the mutex for an id, creating it on first use. Locks
// exist independently of accounts so a transfer naming an unknown account can
// still enter the critical section and fail there with NotFound.
func (s *MemoryStore) accountLock(id uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// canonicalOrder dedupes and sorts ids ascending by byte order, matching how
// Postgres orders the uuid type.
func canonicalOrder(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

// --- committed views ---

type memAccounts struct{ s *MemoryStore }

func (v memAccounts) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	acct, ok := v.s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return acct.Clone(), nil
}

func (v memAccounts) Save(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return saveAccount(v.s.accounts, acct)
}

// saveAccount enforces the version counter: a new account carries version 0
// and is stored at 1; an update must present the stored version and bumps it.
func saveAccount(accounts map[uuid.UUID]*domain.Account, acct *domain.Account) (*domain.Account, error) {
	current, exists := accounts[acct.ID]
	if acct.Version == 0 {
		if exists {
			return nil, fmt.Errorf("account %s already exists", acct.ID)
		}
	} else {
		if !exists {
			return nil, domain.ErrNotFound
		}
		if current.Version != acct.Version {
			return nil, ErrVersionConflict
		}
	}
	cp := acct.Clone()
	cp.Version++
	accounts[acct.ID] = cp
	return cp.Clone(), nil
}

type memLedger struct{ s *MemoryStore }

func (v memLedger) Append(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.entryIDs[txn.ID]; ok {
		return nil, fmt.Errorf("transaction %s already recorded", txn.ID)
	}
	v.s.entries = append(v.s.entries, *txn)
	v.s.entryIDs[txn.ID] = struct{}{}
	cp := *txn
	return &cp, nil
}

func (v memLedger) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	_, ok := v.s.entryIDs[id]
	return ok, nil
}

func (v memLedger) QueryByAccount(ctx context.Context, accountID uuid.UUID, page, size int) ([]domain.Transaction, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	return paginateNewestFirst(v.s.entries, accountID, page, size), nil
}

// paginateNewestFirst walks the append-only log from the end, so the first
// page holds the most recent entries.
func paginateNewestFirst(entries []domain.Transaction, accountID uuid.UUID, page, size int) []domain.Transaction {
	out := []domain.Transaction{}
	skip := page * size
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].AccountID != accountID {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, entries[i])
		if len(out) == size {
			break
		}
	}
	return out
}

type memTransfers struct{ s *MemoryStore }

func (v memTransfers) Save(ctx context.Context, tr *domain.Transfer) (*domain.Transfer, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, ok := v.s.transfers[tr.ID]; ok {
		return nil, fmt.Errorf("transfer %s already recorded", tr.ID)
	}
	cp := *tr
	v.s.transfers[tr.ID] = &cp
	return &cp, nil
}

// --- staged overlay used inside Locked ---

// memTx reads through to committed state but routes every write into staged
// maps. The overlay is thrown away when the Locked callback errors, which is
// what gives a failed transfer its "no partial effects" guarantee.
type memTx struct {
	store     *MemoryStore
	accounts  map[uuid.UUID]*domain.Account
	transfers map[uuid.UUID]*domain.Transfer
	entries   []domain.Transaction
	entryIDs  map[uuid.UUID]struct{}
}

func (t *memTx) Accounts() service.AccountStore   { return txAccounts{t} }
func (t *memTx) Ledger() service.LedgerStore      { return txLedger{t} }
func (t *memTx) Transfers() service.TransferStore { return txTransfers{t} }

type txAccounts struct{ t *memTx }

func (v txAccounts) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if acct, ok := v.t.accounts[id]; ok {
		return acct.Clone(), nil
	}
	return memAccounts{v.t.store}.Get(ctx, id)
}

func (v txAccounts) Save(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	// Version check runs against the staged copy if one exists, otherwise
	// against committed state; either way the write itself only stages.
	if _, ok := v.t.accounts[acct.ID]; ok {
		return saveAccount(v.t.accounts, acct)
	}
	v.t.store.mu.RLock()
	current, exists := v.t.store.accounts[acct.ID]
	v.t.store.mu.RUnlock()
	if acct.Version == 0 {
		if exists {
			return nil, fmt.Errorf("account %s already exists", acct.ID)
		}
	} else {
		if !exists {
			return nil, domain.ErrNotFound
		}
		if current.Version != acct.Version {
			return nil, ErrVersionConflict
		}
	}
	cp := acct.Clone()
	cp.Version++
	v.t.accounts[acct.ID] = cp
	return cp.Clone(), nil
}

type txLedger struct{ t *memTx }

func (v txLedger) Append(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	if _, ok := v.t.entryIDs[txn.ID]; ok {
		return nil, fmt.Errorf("transaction %s already recorded", txn.ID)
	}
	if committed, err := (memLedger{v.t.store}).Exists(ctx, txn.ID); err != nil {
		return nil, err
	} else if committed {
		return nil, fmt.Errorf("transaction %s already recorded", txn.ID)
	}
	v.t.entries = append(v.t.entries, *txn)
	v.t.entryIDs[txn.ID] = struct{}{}
	cp := *txn
	return &cp, nil
}

func (v txLedger) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if _, ok := v.t.entryIDs[id]; ok {
		return true, nil
	}
	return memLedger{v.t.store}.Exists(ctx, id)
}

func (v txLedger) QueryByAccount(ctx context.Context, accountID uuid.UUID, page, size int) ([]domain.Transaction, error) {
	v.t.store.mu.RLock()
	combined := make([]domain.Transaction, 0, len(v.t.store.entries)+len(v.t.entries))
	combined = append(combined, v.t.store.entries...)
	v.t.store.mu.RUnlock()
	combined = append(combined, v.t.entries...)
	return paginateNewestFirst(combined, accountID, page, size), nil
}

type txTransfers struct{ t *memTx }

func (v txTransfers) Save(ctx context.Context, tr *domain.Transfer) (*domain.Transfer, error) {
	if _, ok := v.t.transfers[tr.ID]; ok {
		return nil, fmt.Errorf("transfer %s already recorded", tr.ID)
	}
	cp := *tr
	v.t.transfers[tr.ID] = &cp
	return &cp, nil
}
