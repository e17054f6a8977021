package signature

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	msgActiveExists   = "An active signature request already exists for this document"
	msgNotFound       = "Signature request not found"
	msgNotCancellable = "Only pending or sent signature requests can be cancelled"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Service implements the backend side of the signature request RPCs.
type Service struct {
	pool           TxBeginner
	repo           Repository
	logger         *zap.Logger
	signingBaseURL string
	idGenerator    func() string
	now            func() time.Time
}

func NewService(pool TxBeginner, repo Repository, signingBaseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pool:           pool,
		repo:           repo,
		logger:         logger,
		signingBaseURL: strings.TrimRight(signingBaseURL, "/"),
		idGenerator:    func() string { return uuid.NewString() },
		now:            time.Now,
	}
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create validates and stores a new request. Business refusals come back as
// CreateResult{Success: false}; only infrastructure failures return an error.
func (s *Service) Create(ctx context.Context, in Input) (CreateResult, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Environment == "" {
		in.Environment = EnvironmentSandbox
	}
	if err := in.Validate(); err != nil {
		return CreateResult{ErrorMessage: strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": ")}, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CreateResult{}, fmt.Errorf("signature: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	active, err := s.repo.HasActiveForDocument(ctx, tx, in.SharedDocumentID)
	if err != nil {
		return CreateResult{}, err
	}
	if active {
		return CreateResult{ErrorMessage: msgActiveExists}, nil
	}

	now := s.now().UTC()
	id := s.idGenerator()
	rec, err := s.repo.Insert(ctx, tx, InsertParams{
		ID:             id,
		Input:          in,
		Status:         StatusPending,
		SigningLink:    s.signingBaseURL + "/sign/" + id,
		CreatedAt:      now,
		ExpirationDate: now.AddDate(0, 0, in.ExpirationDays),
	})
	if err != nil {
		if errors.Is(err, ErrActiveRequestExists) {
			return CreateResult{ErrorMessage: msgActiveExists}, nil
		}
		return CreateResult{}, err
	}

	payload := map[string]any{
		"signature_request_id": rec.ID,
		"shared_document_id":   in.SharedDocumentID,
		"journal_id":           in.JournalID,
		"environment":          in.Environment,
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, OutboxTopicCreated, payload); err != nil {
		return CreateResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CreateResult{}, fmt.Errorf("signature: commit create: %w", err)
	}

	s.logger.Info("signature request created",
		zap.String("signature_request_id", rec.ID),
		zap.String("shared_document_id", in.SharedDocumentID))

	return CreateResult{Success: true, SignatureRequestID: rec.ID}, nil
}

func (s *Service) ListForDocument(ctx context.Context, documentID string) ([]Record, error) {
	if documentID == "" {
		return nil, ErrMissingDocument
	}
	return s.repo.ListByDocument(ctx, documentID)
}

func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, ErrMissingRequestID
	}
	return s.repo.Get(ctx, id)
}

// Cancel withdraws a pending or sent request.
func (s *Service) Cancel(ctx context.Context, id string) (CancelResult, error) {
	if id == "" {
		return CancelResult{}, ErrMissingRequestID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CancelResult{}, fmt.Errorf("signature: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.repo.LockStatus(ctx, tx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return CancelResult{Message: msgNotFound}, nil
		}
		return CancelResult{}, err
	}
	if !current.Cancellable() {
		return CancelResult{Message: msgNotCancellable}, nil
	}

	if err := s.repo.UpdateStatus(ctx, tx, id, StatusRejected, nil); err != nil {
		return CancelResult{}, err
	}
	payload := map[string]any{
		"signature_request_id": id,
		"previous":             current,
	}
	if err := s.repo.EnqueueOutbox(ctx, tx, OutboxTopicCancelled, payload); err != nil {
		return CancelResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return CancelResult{}, fmt.Errorf("signature: commit cancel: %w", err)
	}

	s.logger.Info("signature request cancelled", zap.String("signature_request_id", id))
	return CancelResult{Success: true}, nil
}

// ExpireOverdue marks every active request past its expiration date as
// Expired and returns how many were changed.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("signature: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids, err := s.repo.ListOverdue(ctx, tx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := s.repo.UpdateStatus(ctx, tx, id, StatusExpired, nil); err != nil {
			return 0, err
		}
		payload := map[string]any{
			"signature_request_id": id,
			"next":                 StatusExpired,
		}
		if err := s.repo.EnqueueOutbox(ctx, tx, OutboxTopicStatusChanged, payload); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("signature: commit expiry: %w", err)
	}
	if len(ids) > 0 {
		s.logger.Info("expired overdue signature requests", zap.Int("count", len(ids)))
	}
	return len(ids), nil
}
