// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/quickly-vote/cliparse"
	"github.com/danielhkuo/quickly-vote/db"
	"github.com/danielhkuo/quickly-vote/metrics"
	"github.com/danielhkuo/quickly-vote/middleware"
	"github.com/danielhkuo/quickly-vote/router"
	"github.com/danielhkuo/quickly-vote/store"
	"github.com/danielhkuo/quickly-vote/store/memstore"
	"github.com/danielhkuo/quickly-vote/store/mongostore"
	"github.com/danielhkuo/quickly-vote/store/sqlstore"
)

const (
	connectTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliparse.Config) error {
	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	st, err := openStore(connectCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer st.Close()
	slog.Info("storage ready", "type", cfg.DatabaseType)

	m := metrics.New()
	server := http.Server{
		Handler:           middleware.CORS(router.NewRouter(st, cfg, m)),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		slog.Info("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore connects the configured backend. SQL backends get their schema
// created; mongo gets its indexes.
func openStore(ctx context.Context, cfg cliparse.Config) (store.Store, error) {
	switch cfg.DatabaseType {
	case cliparse.BackendMemory:
		if cfg.DisableTransactions {
			slog.Warn("transactions disabled; vote writes will run without atomicity")
		}
		return memstore.New(memstore.Options{Transactions: !cfg.DisableTransactions}), nil

	case cliparse.BackendMongo:
		st, err := mongostore.Connect(ctx, cfg.DatabaseURL, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return st, nil

	case cliparse.BackendSQLite, cliparse.BackendPostgres:
		dialect := db.Dialect(cfg.DatabaseType)
		conn, err := db.Open(ctx, dialect, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.CreateSchema(ctx, conn); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "schema creation failed")
		}
		return sqlstore.New(conn, dialect), nil

	default:
		return nil, errors.Newf("unknown database type %q", cfg.DatabaseType)
	}
}
