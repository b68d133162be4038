package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/udisondev/updstatus/internal/config"
	"github.com/udisondev/updstatus/internal/db"
)

// backend bundles the provider and repositories for one configured database.
type backend struct {
	provider db.Provider
	status   *db.UpdateStatusRepository
	ledger   *db.TransactionRepository
	close    func()
}

// openBackend connects to the configured database and applies migrations.
// reg may be nil when metrics are not exported.
func openBackend(ctx context.Context, cfg config.Updater, reg prometheus.Registerer) (*backend, error) {
	var (
		provider db.Provider
		closeFn  func()
	)

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		database, err := db.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		provider, closeFn = database, database.Close

	case config.DriverSQLite:
		database, err := db.OpenSQLite(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.RunSQLiteMigrations(ctx, database.DB()); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		provider, closeFn = database, func() { _ = database.Close() }

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	slog.Info("database ready", "driver", cfg.Database.Driver)

	var opts []db.RepositoryOption
	if reg != nil {
		m, err := db.NewMetrics(reg)
		if err != nil {
			closeFn()
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
		opts = append(opts, db.WithMetrics(m))
	}

	ledger := db.NewTransactionRepository(provider)
	return &backend{
		provider: provider,
		status:   db.NewUpdateStatusRepository(provider, ledger, opts...),
		ledger:   ledger,
		close:    closeFn,
	}, nil
}
