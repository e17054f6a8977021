package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsign/test/infra"
)

func TestOptionsFor_Integration(t *testing.T) {
	h := infra.Start(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool := h.Pool()

	seed := []string{
		`INSERT INTO accounts (id, first_name, last_name) VALUES ('acc-1', 'Jane', 'Doe')`,
		`INSERT INTO journals (id, account_id, docfab_url, created_at) VALUES ('j-old', 'acc-1', 'https://docs.example.com/old', now() - interval '1 day')`,
		`INSERT INTO journals (id, account_id, docfab_url) VALUES ('j-new', 'acc-1', 'https://docs.example.com/new')`,
		`INSERT INTO journals (id, account_id, docfab_url) VALUES ('j-empty', 'acc-1', '')`,
	}
	for _, q := range seed {
		if _, err := pool.Exec(ctx, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	repo := NewRepository(pool)

	opts, err := repo.OptionsFor(ctx, "acc-1", ObjectAccount)
	if err != nil {
		t.Fatalf("account options: %v", err)
	}
	if len(opts) != 2 || opts[0].JournalID != "j-new" || opts[1].JournalID != "j-old" {
		t.Fatalf("unexpected account options: %+v", opts)
	}

	opts, err = repo.OptionsFor(ctx, "j-old", ObjectJournal)
	if err != nil {
		t.Fatalf("journal options: %v", err)
	}
	if len(opts) != 1 || opts[0].URL != "https://docs.example.com/old" {
		t.Fatalf("unexpected journal options: %+v", opts)
	}

	opts, err = repo.OptionsFor(ctx, "j-empty", ObjectJournal)
	if err != nil || len(opts) != 0 {
		t.Fatalf("expected no options for journal without url, got %+v %v", opts, err)
	}

	if _, err := repo.OptionsFor(ctx, "x", "Case"); !errors.Is(err, ErrUnsupportedObject) {
		t.Fatalf("expected ErrUnsupportedObject, got %v", err)
	}
}
