package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ibrahimkeyboad/goledger/internal/core/domain"
	"github.com/ibrahimkeyboad/goledger/internal/core/service"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// repository code runs inside and outside the locked transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements service.Store on top of a pgx pool.
//
// Locked maps to one database transaction holding `SELECT ... FOR UPDATE` row
// locks on the touched accounts, taken in ascending id order. The transaction
// commits only when the callback succeeds, so a failed transfer leaves no
// trace. Balances travel as NUMERIC and cross the wire as strings; they are
// never widened to a float.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Accounts() service.AccountStore   { return pgAccounts{s.pool} }
func (s *PostgresStore) Ledger() service.LedgerStore      { return pgLedger{s.pool} }
func (s *PostgresStore) Transfers() service.TransferStore { return pgTransfers{s.pool} }

func (s *PostgresStore) Locked(ctx context.Context, ids []uuid.UUID, fn func(service.Stores) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, id := range canonicalOrder(ids) {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("lock account %s: %w", id, err)
		}
		// A missing row means the account does not exist; the callback's own
		// reads will surface that as NotFound.
	}

	if err := fn(pgStores{tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// pgStores hands the repositories a transaction-scoped querier.
type pgStores struct{ q querier }

func (s pgStores) Accounts() service.AccountStore   { return pgAccounts{s.q} }
func (s pgStores) Ledger() service.LedgerStore      { return pgLedger{s.q} }
func (s pgStores) Transfers() service.TransferStore { return pgTransfers{s.q} }

type pgAccounts struct{ q querier }

func (r pgAccounts) Get(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var (
		acct    domain.Account
		balance string
	)
	err := r.q.QueryRow(ctx,
		`SELECT id, owner_name, balance::text, version, created_at FROM accounts WHERE id = $1`,
		id).Scan(&acct.ID, &acct.OwnerName, &balance, &acct.Version, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	acct.Balance, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q: %w", balance, err)
	}
	return &acct, nil
}

func (r pgAccounts) Save(ctx context.Context, acct *domain.Account) (*domain.Account, error) {
	saved := acct.Clone()

	if acct.Version == 0 {
		_, err := r.q.Exec(ctx,
			`INSERT INTO accounts (id, owner_name, balance, version, created_at)
			 VALUES ($1, $2, $3::numeric, 1, $4)`,
			acct.ID, acct.OwnerName, acct.Balance.String(), acct.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert account: %w", err)
		}
		saved.Version = 1
		return saved, nil
	}

	tag, err := r.q.Exec(ctx,
		`UPDATE accounts SET balance = $1::numeric, version = version + 1
		 WHERE id = $2 AND version = $3`,
		acct.Balance.String(), acct.ID, acct.Version)
	if err != nil {
		return nil, fmt.Errorf("update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrVersionConflict
	}
	saved.Version = acct.Version + 1
	return saved, nil
}

type pgLedger struct{ q querier }

func (r pgLedger) Append(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	_, err := r.q.Exec(ctx,
		`INSERT INTO transactions (id, account_id, direction, amount, category, transfer_id, status, description, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)`,
		txn.ID, txn.AccountID, string(txn.Direction), txn.Amount.String(),
		string(txn.Category), txn.TransferID, string(txn.Status), txn.Description, txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	cp := *txn
	return &cp, nil
}

func (r pgLedger) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction: %w", err)
	}
	return exists, nil
}

func (r pgLedger) QueryByAccount(ctx context.Context, accountID uuid.UUID, page, size int) ([]domain.Transaction, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, account_id, direction, amount::text, category, transfer_id, status, description, created_at
		 FROM transactions
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		accountID, size, page*size)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		var (
			txn       domain.Transaction
			direction string
			amount    string
			category  string
			status    string
		)
		if err := rows.Scan(&txn.ID, &txn.AccountID, &direction, &amount, &category,
			&txn.TransferID, &status, &txn.Description, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.Direction = domain.Direction(direction)
		txn.Category = domain.Category(category)
		txn.Status = domain.Status(status)
		txn.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", amount, err)
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

type pgTransfers struct{ q querier }

func (r pgTransfers) Save(ctx context.Context, tr *domain.Transfer) (*domain.Transfer, error) {
	_, err := r.q.Exec(ctx,
		`INSERT INTO transfers (id, from_account_id, to_account_id, amount, created_at)
		 VALUES ($1, $2, $3, $4::numeric, $5)`,
		tr.ID, tr.FromAccountID, tr.ToAccountID, tr.Amount.String(), tr.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transfer: %w", err)
	}
	cp := *tr
	return &cp, nil
}
