package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ibrahimkeyboad/goledger/internal/core/domain"
)

// DefaultPageSize is used when a caller does not supply a page size.
const DefaultPageSize = 10

// HistoryService is the read path over the ledger.
type HistoryService struct {
	store Store
}

func NewHistoryService(store Store) *HistoryService {
	return &HistoryService{store: store}
}

// GetHistory returns the account's transactions newest first, one zero-based
// page at a time. Pages past the end and accounts with no transactions yield
// an empty slice. The account's existence is deliberately not checked: an
// unknown account reads the same as an account with no history.
func (s *HistoryService) GetHistory(ctx context.Context, accountID uuid.UUID, page, size int) ([]domain.Transaction, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	txns, err := s.store.Ledger().QueryByAccount(ctx, accountID, page, size)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	return txns, nil
}
