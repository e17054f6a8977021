package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docsign/account"
	"docsign/auth"
	"docsign/config"
	"docsign/db"
	"docsign/journal"
	"docsign/logging"
	"docsign/metrics"
	"docsign/rpc"
	"docsign/signature"
)

func main() {
	configPath := flag.String("config", os.Getenv("DOCSIGN_CONFIG"), "path to a docsign.yaml config file")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("docsign api: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("bootstrap database pool: %w", err)
	}
	defer pool.Close()

	if cfg.Database.Migrate {
		applied, err := db.Migrate(ctx, pool)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", zap.Strings("versions", applied))
	}

	collector := metrics.NewCollector()
	signatures := signature.NewService(pool, signature.NewRepository(pool), cfg.Signing.BaseURL, logger.Named("signature"))
	server := rpc.NewServer(
		journal.NewService(journal.NewRepository(pool)),
		signatures,
		account.NewService(account.NewRepository(pool)),
		auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		logger.Named("rpc"),
	).WithMetrics(collector)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ln, err := net.Listen("tcp", httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", httpServer.Addr, err)
	}
	logger.Info("docsign api listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("environment", cfg.Signing.Environment))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return serve(gctx, httpServer, ln, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		sweep(gctx, signatures, cfg.Signing.SweepInterval, collector, logger.Named("sweeper"))
		return nil
	})
	return g.Wait()
}

// serve runs srv on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type expirer interface {
	ExpireOverdue(ctx context.Context) (int, error)
}

// sweep expires overdue requests every interval until ctx is done.
func sweep(ctx context.Context, svc expirer, interval time.Duration, collector *metrics.Collector, logger *zap.Logger) {
	if interval <= 0 {
		logger.Info("expiry sweep disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ExpireOverdue(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("expire overdue signature requests", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				logger.Info("expired overdue signature requests", zap.Int("count", n))
			}
			if collector != nil {
				collector.RequestsExpired(n)
			}
		}
	}
}
