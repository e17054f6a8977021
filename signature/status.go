package signature

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a provider update does not follow
// the status graph.
var ErrInvalidTransition = errors.New("signature: invalid status transition")

var transitions = map[Status][]Status{
	StatusNew:     {StatusPending, StatusSent, StatusRejected, StatusExpired, StatusFailed},
	StatusPending: {StatusSent, StatusOpened, StatusRejected, StatusExpired, StatusFailed},
	StatusSent:    {StatusOpened, StatusSigned, StatusRejected, StatusExpired, StatusFailed},
	StatusOpened:  {StatusSigned, StatusRejected, StatusExpired, StatusFailed},
	StatusSigned:  {StatusCompleted},
}

// CanTransition reports whether from -> to is a legal provider-driven move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type TransitionParams struct {
	RequestID  string
	NextStatus Status
	Payload    map[string]any
}

// Transition applies a provider status update, stamping the completion date
// when the request reaches Signed or Completed, and enqueues an outbox
// message in the same transaction. Replaying the current status is a no-op.
func (s *Service) Transition(ctx context.Context, params TransitionParams) error {
	if params.RequestID == "" {
		return ErrMissingRequestID
	}
	if !params.NextStatus.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, params.NextStatus)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("signature: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.LockStatus(ctx, tx, params.RequestID)
	if err != nil {
		return err
	}
	if current == params.NextStatus {
		return nil
	}
	if !CanTransition(current, params.NextStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, params.NextStatus)
	}

	var completedAt *time.Time
	if params.NextStatus == StatusSigned || params.NextStatus == StatusCompleted {
		now := s.now().UTC()
		completedAt = &now
	}
	if err := s.repo.UpdateStatus(ctx, tx, params.RequestID, params.NextStatus, completedAt); err != nil {
		return err
	}

	payload := map[string]any{
		"signature_request_id": params.RequestID,
		"previous":             current,
		"next":                 params.NextStatus,
	}
	for k, v := range params.Payload {
		payload[k] = v
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, OutboxTopicStatusChanged, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("signature: commit transition: %w", err)
	}
	return nil
}
