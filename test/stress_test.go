package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"docsign/signature"
	"docsign/test/actors"
	"docsign/test/chaos"
	"docsign/test/infra"
	"docsign/test/oracles"
)

var (
	flStress      = flag.Bool("stress", false, "run the signature request stress suite")
	flDuration    = flag.Duration("duration", 60*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent creators")
	flDocuments   = flag.Int("documents", 3, "number of shared documents contended for")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func TestSignatureRequestConcurrency(t *testing.T) {
	if !*flStress {
		t.Skip("stress suite disabled; run with -stress")
	}
	seed := *flSeed
	rand.Seed(seed)

	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	if *flDSN == "" && !infra.DockerAvailable(ctx) {
		t.Skipf("no -dsn, no %s and no docker daemon", infra.SharedDSNEnv)
	}
	pgC, dsn, shared, err := infra.StartPostgres16(ctx, *flDSN)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, shared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	svc := signature.NewService(pool, signature.NewRepository(pool), "https://sign.example.com", nil)
	// Every request is overdue for the sweeper, so expiry races with the
	// provider and the canceller.
	sweepSvc := signature.NewService(pool, signature.NewRepository(pool), "https://sign.example.com", nil).
		WithClock(func() time.Time { return time.Now().AddDate(0, 0, 90) })

	documents := make([]string, *flDocuments)
	for i := range documents {
		documents[i] = fmt.Sprintf("stress-doc-%d-%d", seed, i)
	}

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	for i := 0; i < *flConcurrency; i++ {
		doc := documents[i%len(documents)]
		g.Go(func() error { return actors.Creator(ctx2, svc, doc, stop) })
	}
	for _, doc := range documents {
		doc := doc
		g.Go(func() error { return actors.Canceller(ctx2, pool, svc, doc, stop) })
		g.Go(func() error { return actors.Provider(ctx2, pool, svc, doc, stop) })
	}
	g.Go(func() error { return actors.Sweeper(ctx2, sweepSvc, stop) })
	g.Go(func() error { return actors.OutboxWorker(ctx2, pool, stop) })
	go chaos.TerminateRandomBackend(ctx2, pool, 2*time.Second, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx2.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Logf("oracle %s errored (retrying next tick): %v", name, err)
				continue
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v (seed=%d)", err, seed)
		}
	}
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	dumps := []struct {
		name string
		sql  string
	}{
		{"signature_requests", `SELECT id, shared_document_id, status, created_at, completed_at FROM signature_requests ORDER BY created_at DESC LIMIT 50`},
		{"outbox", `SELECT id, topic, status, attempts, created_at FROM outbox ORDER BY created_at DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", cols[i].Name, vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
