package infra

import (
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SharedDSNEnv names an existing database reused instead of a container.
const SharedDSNEnv = "DOCSIGN_TEST_PG_DSN"

type PGContainer struct {
	C *postgres.PostgresContainer
}

// StartPostgres16 starts a Postgres 16 container and returns a DSN. If
// overrideDSN or DOCSIGN_TEST_PG_DSN is set, that database is reused and
// shared is true.
func StartPostgres16(ctx context.Context, overrideDSN string) (c *PGContainer, dsn string, shared bool, err error) {
	if overrideDSN != "" {
		return &PGContainer{}, overrideDSN, true, nil
	}
	if dsn := os.Getenv(SharedDSNEnv); dsn != "" {
		return &PGContainer{}, dsn, true, nil
	}

	pgC, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("docsign"),
		postgres.WithUsername("docsign"),
		postgres.WithPassword("docsign"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, "", false, err
	}

	dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = pgC.Terminate(ctx)
		return nil, "", false, err
	}
	return &PGContainer{C: pgC}, dsn, false, nil
}

func (p *PGContainer) Terminate(ctx context.Context) error {
	if p == nil || p.C == nil {
		return nil
	}
	return p.C.Terminate(ctx)
}

// DockerAvailable reports whether a usable docker daemon is reachable.
func DockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

func sharedDSNSet() bool {
	return os.Getenv(SharedDSNEnv) != ""
}
