package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAccountNotFound signals that the service account does not exist.
	ErrAccountNotFound = errors.New("auth: service account not found")
	// ErrDuplicateClient signals that the client id is already registered.
	ErrDuplicateClient = errors.New("auth: client id already exists")
)

// Repository handles data access for service accounts.
type Repository interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (ServiceAccount, error)
	GetAccountByClientID(ctx context.Context, clientID string) (ServiceAccount, error)
}

type CreateAccountParams struct {
	ID         string
	ClientID   string
	Name       string
	SecretHash string
	Role       Role
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (ServiceAccount, error) {
	const insertSQL = `
		INSERT INTO service_accounts (id, client_id, name, secret_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, client_id, name, secret_hash, role, created_at
	`

	acc, err := scanAccount(r.pool.QueryRow(ctx, insertSQL, params.ID, params.ClientID, params.Name, params.SecretHash, params.Role))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ServiceAccount{}, ErrDuplicateClient
		}
		return ServiceAccount{}, fmt.Errorf("auth: create service account: %w", err)
	}
	return acc, nil
}

func (r *PGRepository) GetAccountByClientID(ctx context.Context, clientID string) (ServiceAccount, error) {
	const selectSQL = `
		SELECT id, client_id, name, secret_hash, role, created_at
		FROM service_accounts
		WHERE client_id = $1
	`

	acc, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ServiceAccount{}, ErrAccountNotFound
		}
		return ServiceAccount{}, fmt.Errorf("auth: get service account: %w", err)
	}
	return acc, nil
}

func scanAccount(row pgx.Row) (ServiceAccount, error) {
	var acc ServiceAccount
	if err := row.Scan(&acc.ID, &acc.ClientID, &acc.Name, &acc.SecretHash, &acc.Role, &acc.CreatedAt); err != nil {
		return ServiceAccount{}, err
	}
	return acc, nil
}
