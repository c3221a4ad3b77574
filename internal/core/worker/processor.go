package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibrahimkeyboad/goledger/internal/core/notifications"
)

const maxAttempts = 5

// StartWebhookWorker polls webhook_jobs and delivers pending notifications.
// Each pass claims one job with FOR UPDATE SKIP LOCKED, so multiple instances
// can run without double-sending. Stops when ctx is canceled.
func StartWebhookWorker(ctx context.Context, db *pgxpool.Pool, secret string) {
	go func() {
		slog.Info("Webhook worker started")
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("Webhook worker stopped")
				return
			case <-ticker.C:
				processJob(ctx, db, secret)
			}
		}
	}()
}

func processJob(ctx context.Context, db *pgxpool.Pool, secret string) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return
	}
	defer tx.Rollback(ctx)

	var (
		id       string
		url      string
		payload  []byte
		attempts int
	)
	err = tx.QueryRow(ctx, `
		SELECT id, url, payload, attempts
		FROM webhook_jobs
		WHERE status = 'PENDING' AND next_run_at <= NOW()
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`).Scan(&id, &url, &payload, &attempts)
	if err != nil {
		return // nothing to do
	}

	slog.Info("Worker: delivering webhook", "url", url, "job_id", id)

	if sendErr := notifications.SendWebhook(url, payload, secret); sendErr != nil {
		slog.Error("Worker: webhook delivery failed", "error", sendErr, "attempts", attempts, "job_id", id)
		if attempts+1 >= maxAttempts {
			tx.Exec(ctx, `UPDATE webhook_jobs SET status = 'FAILED' WHERE id = $1`, id)
			slog.Error("Worker: job abandoned after max attempts", "job_id", id)
		} else {
			nextRun := time.Now().Add(time.Duration(attempts*10+10) * time.Second)
			tx.Exec(ctx, `UPDATE webhook_jobs SET attempts = attempts + 1, next_run_at = $2 WHERE id = $1`, id, nextRun)
		}
	} else {
		slog.Info("Worker: webhook delivered", "job_id", id)
		tx.Exec(ctx, `UPDATE webhook_jobs SET status = 'COMPLETED' WHERE id = $1`, id)
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("Worker: failed to commit job state", "error", err, "job_id", id)
	}
}
