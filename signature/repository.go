package signature

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no signature request row matches the id.
	ErrNotFound = errors.New("signature: request not found")
	// ErrActiveRequestExists signals the one-active-request-per-document guard fired.
	ErrActiveRequestExists = errors.New("signature: active request already exists for document")
	ErrInvalidInput        = errors.New("signature: invalid input")
	ErrMissingDocument     = errors.New("signature: missing shared document id")
	ErrMissingRequestID    = errors.New("signature: missing signature request id")
)

// InsertParams carries the server-computed fields of a new request.
type InsertParams struct {
	ID             string
	Input          Input
	Status         Status
	SigningLink    string
	CreatedAt      time.Time
	ExpirationDate time.Time
}

// Repository is the data access the backend service needs. Reads go through
// the pool, writes run inside the caller's transaction.
type Repository interface {
	ListByDocument(ctx context.Context, documentID string) ([]Record, error)
	Get(ctx context.Context, id string) (Record, error)
	HasActiveForDocument(ctx context.Context, tx pgx.Tx, documentID string) (bool, error)
	Insert(ctx context.Context, tx pgx.Tx, params InsertParams) (Record, error)
	LockStatus(ctx context.Context, tx pgx.Tx, id string) (Status, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id string, next Status, completedAt *time.Time) error
	ListOverdue(ctx context.Context, tx pgx.Tx, now time.Time) ([]string, error)
	EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const selectColumns = `
	id, shared_document_id, title, signer_name, signer_email, language,
	status, created_at, expiration_date, completed_at, signing_link
`

func (r *PGRepository) ListByDocument(ctx context.Context, documentID string) ([]Record, error) {
	query := `SELECT ` + selectColumns + `
		FROM signature_requests
		WHERE shared_document_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("signature: list by document: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 4)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("signature: scan request: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("signature: iterate requests: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Record, error) {
	query := `SELECT ` + selectColumns + ` FROM signature_requests WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("signature: get: %w", err)
	}
	return rec, nil
}

// HasActiveForDocument takes a transaction-scoped advisory lock on the
// document so concurrent creates serialise, then checks for active rows.
func (r *PGRepository) HasActiveForDocument(ctx context.Context, tx pgx.Tx, documentID string) (bool, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, documentID); err != nil {
		return false, fmt.Errorf("signature: lock document: %w", err)
	}

	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM signature_requests
			WHERE shared_document_id = $1 AND status IN ('Pending','Sent','Opened')
		)`, documentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("signature: check active: %w", err)
	}
	return exists, nil
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, params InsertParams) (Record, error) {
	in := params.Input
	query := `
		INSERT INTO signature_requests (
			id, shared_document_id, account_id, journal_id, title, signer_name, signer_email,
			language, expiration_days, market_unit, environment, status, signing_link,
			created_at, expiration_date
		) VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12,$13,$14,$15)
		RETURNING ` + selectColumns

	rec, err := scanRecord(tx.QueryRow(ctx, query,
		params.ID,
		in.SharedDocumentID,
		in.AccountID,
		in.JournalID,
		in.Title,
		in.SignerName,
		in.SignerEmail,
		in.Language,
		in.ExpirationDays,
		in.MarketUnit,
		in.Environment,
		params.Status,
		params.SigningLink,
		params.CreatedAt,
		params.ExpirationDate,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Record{}, ErrActiveRequestExists
		}
		return Record{}, fmt.Errorf("signature: insert: %w", err)
	}
	return rec, nil
}

func (r *PGRepository) LockStatus(ctx context.Context, tx pgx.Tx, id string) (Status, error) {
	var status Status
	err := tx.QueryRow(ctx, `SELECT status FROM signature_requests WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("signature: lock status: %w", err)
	}
	return status, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, id string, next Status, completedAt *time.Time) error {
	tag, err := tx.Exec(ctx, `
		UPDATE signature_requests
		SET status = $1,
		    completed_at = COALESCE($2::timestamptz, completed_at),
		    updated_at = now()
		WHERE id = $3`, next, completedAt, id)
	if err != nil {
		return fmt.Errorf("signature: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) ListOverdue(ctx context.Context, tx pgx.Tx, now time.Time) ([]string, error) {
	rows, err := tx.Query(ctx, `
		SELECT id FROM signature_requests
		WHERE status IN ('Pending','Sent','Opened') AND expiration_date < $1
		ORDER BY expiration_date
		FOR UPDATE SKIP LOCKED`, now)
	if err != nil {
		return nil, fmt.Errorf("signature: list overdue: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("signature: scan overdue: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("signature: iterate overdue: %w", err)
	}
	return ids, nil
}

func (r *PGRepository) EnqueueOutbox(ctx context.Context, tx pgx.Tx, topic string, payload map[string]any) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("signature: marshal outbox payload: %w", err)
	}

	const insertSQL = `
INSERT INTO outbox (topic, payload)
VALUES ($1, $2);
`
	if _, err := tx.Exec(ctx, insertSQL, topic, payloadBytes); err != nil {
		return fmt.Errorf("signature: insert outbox message: %w", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec         Record
		createdAt   time.Time
		expiration  *time.Time
		completedAt *time.Time
	)
	err := row.Scan(
		&rec.ID,
		&rec.SharedDocumentID,
		&rec.Title,
		&rec.SignerName,
		&rec.SignerEmail,
		&rec.Language,
		&rec.Status,
		&createdAt,
		&expiration,
		&completedAt,
		&rec.SigningLink,
	)
	if err != nil {
		return Record{}, err
	}

	rec.CreatedDate = formatTimestamp(&createdAt)
	rec.ExpirationDate = formatTimestamp(expiration)
	rec.CompletedDate = formatTimestamp(completedAt)
	return rec, nil
}

func formatTimestamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
