package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrMissingRecord     = errors.New("journal: record id and object api name required")
	ErrUnsupportedObject = errors.New("journal: unsupported object api name")
)

// Repository reads journal document links.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// OptionsFor returns the journals linked to a record that carry a document
// URL. A journal record resolves to itself; an account resolves to all of
// its journals.
func (r *Repository) OptionsFor(ctx context.Context, recordID, objectAPIName string) ([]Option, error) {
	var query string
	switch objectAPIName {
	case ObjectJournal:
		query = `
			SELECT id, docfab_url FROM journals
			WHERE id = $1 AND docfab_url <> ''
		`
	case ObjectAccount:
		query = `
			SELECT id, docfab_url FROM journals
			WHERE account_id = $1 AND docfab_url <> ''
			ORDER BY created_at DESC
		`
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedObject, objectAPIName)
	}

	rows, err := r.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("journal: list options: %w", err)
	}
	defer rows.Close()

	out := make([]Option, 0, 2)
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.JournalID, &o.URL); err != nil {
			return nil, fmt.Errorf("journal: scan option: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate options: %w", err)
	}
	return out, nil
}
