// Package actors drives concurrent traffic against the signature request
// service for the stress suite.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"docsign/signature"
)

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

func pause(base, jitter int) {
	time.Sleep(time.Duration(base+rand.Intn(jitter)) * time.Millisecond)
}

// Creator keeps trying to open a request on a shared document; refusals
// while one is active are expected.
func Creator(ctx context.Context, svc *signature.Service, documentID string, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		_, err := svc.Create(ctx, signature.Input{
			SharedDocumentID: documentID,
			SignerName:       "Stress Signer",
			SignerEmail:      fmt.Sprintf("s%d@example.com", rand.Intn(1000)),
			Language:         signature.Languages[rand.Intn(len(signature.Languages))],
			ExpirationDays:   signature.ExpirationDays[rand.Intn(len(signature.ExpirationDays))],
		})
		if err != nil && !transient(ctx, err) {
			return fmt.Errorf("creator: %w", err)
		}
		pause(10, 20)
	}
}

// Canceller withdraws whatever request is currently active on the document.
func Canceller(ctx context.Context, pool *pgxpool.Pool, svc *signature.Service, documentID string, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		if id, ok := activeID(ctx, pool, documentID); ok {
			if _, err := svc.Cancel(ctx, id); err != nil && !transient(ctx, err) {
				return fmt.Errorf("canceller: %w", err)
			}
		}
		pause(40, 60)
	}
}

// Provider posts status updates the way the e-sign provider would, picking
// random targets; illegal moves must be refused, never applied.
func Provider(ctx context.Context, pool *pgxpool.Pool, svc *signature.Service, documentID string, stop <-chan struct{}) error {
	targets := []signature.Status{
		signature.StatusSent, signature.StatusOpened, signature.StatusSigned,
		signature.StatusCompleted, signature.StatusFailed,
	}
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		if id, ok := latestID(ctx, pool, documentID); ok {
			err := svc.Transition(ctx, signature.TransitionParams{
				RequestID:  id,
				NextStatus: targets[rand.Intn(len(targets))],
			})
			if err != nil && !errors.Is(err, signature.ErrInvalidTransition) && !transient(ctx, err) {
				return fmt.Errorf("provider: %w", err)
			}
		}
		pause(20, 40)
	}
}

// Sweeper runs the expiry sweep on a clock far enough ahead that every
// active request is overdue.
func Sweeper(ctx context.Context, svc *signature.Service, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		if _, err := svc.ExpireOverdue(ctx); err != nil && !transient(ctx, err) {
			return fmt.Errorf("sweeper: %w", err)
		}
		pause(150, 100)
	}
}

// OutboxWorker consumes pending outbox messages with SKIP LOCKED and marks
// them processed, simulating occasional delivery failures.
func OutboxWorker(ctx context.Context, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			if transient(ctx, err) {
				continue
			}
			return err
		}
		rows, err := tx.Query(ctx, `SELECT id FROM outbox WHERE status='pending' ORDER BY created_at FOR UPDATE SKIP LOCKED LIMIT 10`)
		if err != nil {
			_ = tx.Rollback(ctx)
			time.Sleep(50 * time.Millisecond)
			continue
		}
		ids := make([]string, 0, 10)
		for rows.Next() {
			var id string
			_ = rows.Scan(&id)
			ids = append(ids, id)
		}
		rows.Close()
		for _, id := range ids {
			if rand.Intn(10) == 0 {
				_, _ = tx.Exec(ctx, `UPDATE outbox SET attempts=attempts+1, last_attempt=NOW() WHERE id=$1`, id)
				continue
			}
			_, _ = tx.Exec(ctx, `UPDATE outbox SET status='processed', last_attempt=NOW() WHERE id=$1`, id)
		}
		_ = tx.Commit(ctx)
		time.Sleep(100 * time.Millisecond)
	}
}

func activeID(ctx context.Context, pool *pgxpool.Pool, documentID string) (string, bool) {
	var id string
	err := pool.QueryRow(ctx, `SELECT id FROM signature_requests WHERE shared_document_id=$1 AND status IN ('Pending','Sent') LIMIT 1`, documentID).Scan(&id)
	return id, err == nil
}

func latestID(ctx context.Context, pool *pgxpool.Pool, documentID string) (string, bool) {
	var id string
	err := pool.QueryRow(ctx, `SELECT id FROM signature_requests WHERE shared_document_id=$1 ORDER BY created_at DESC LIMIT 1`, documentID).Scan(&id)
	return id, err == nil
}

// transient reports errors caused by the run ending or by chaos killing a
// backend connection.
func transient(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return isConnectionLoss(err)
}
