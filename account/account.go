package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested account does not exist.
var ErrNotFound = errors.New("account: not found")

// Account is the subset of person-account fields used to pre-fill a signer.
type Account struct {
	ID          string `json:"Id"`
	FirstName   string `json:"FirstName,omitempty"`
	LastName    string `json:"LastName,omitempty"`
	PersonEmail string `json:"PersonEmail,omitempty"`
}

// FullName joins first and last name, trimming missing parts.
func (a Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Repository provides read access to accounts.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetByID(ctx context.Context, id string) (Account, error) {
	const query = `
		SELECT id, first_name, last_name, person_email
		FROM accounts
		WHERE id = $1
	`

	var a Account
	err := r.pool.QueryRow(ctx, query, id).Scan(&a.ID, &a.FirstName, &a.LastName, &a.PersonEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, fmt.Errorf("account: query by id: %w", err)
	}
	return a, nil
}

// Reader abstracts repository operations for the service.
type Reader interface {
	GetByID(ctx context.Context, id string) (Account, error)
}

type Service struct {
	repo Reader
}

func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	if id == "" {
		return Account{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}
