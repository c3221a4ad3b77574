package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WebhookQueue records webhook deliveries as rows in webhook_jobs. The worker
// picks them up with FOR UPDATE SKIP LOCKED, so delivery is at-least-once and
// survives restarts. Enqueue happens after a transfer commits; a lost enqueue
// costs a notification, never money.
type WebhookQueue struct {
	pool *pgxpool.Pool
}

func NewWebhookQueue(pool *pgxpool.Pool) *WebhookQueue {
	return &WebhookQueue{pool: pool}
}

func (q *WebhookQueue) Enqueue(ctx context.Context, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	_, err = q.pool.Exec(ctx,
		`INSERT INTO webhook_jobs (url, payload) VALUES ($1, $2::jsonb)`,
		url, string(body))
	if err != nil {
		return fmt.Errorf("enqueue webhook job: %w", err)
	}
	return nil
}
