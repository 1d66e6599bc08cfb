package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cscfi/exam-reservation/internal/config"
	"github.com/cscfi/exam-reservation/internal/database"
	"github.com/cscfi/exam-reservation/internal/repository"
	"github.com/cscfi/exam-reservation/internal/repository/memstore"
)

// openDB connects to MySQL and optionally applies pending migrations.
func openDB(ctx context.Context, cfg config.Config, migrate bool, logger *zap.Logger) (*sql.DB, error) {
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	if migrate {
		applied, err := database.Migrate(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		for _, f := range applied {
			logger.Info("migration applied", zap.String("file", f))
		}
	}
	return db, nil
}

// openStore returns the store selected by STORAGE_DRIVER and a function
// releasing it.  The memory store is seeded from SEED_FILE when set.
func openStore(ctx context.Context, cfg config.Config, migrate bool, logger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.StorageDriver {
	case config.StorageMemory:
		st := memstore.New()
		if path := os.Getenv("SEED_FILE"); path != "" {
			f, err := os.Open(path)
			if err != nil {
				return nil, nil, err
			}
			defer f.Close()
			if err := st.Load(f); err != nil {
				return nil, nil, err
			}
			logger.Info("memory store seeded", zap.String("file", path))
		}
		return st, func() {}, nil
	default:
		db, err := openDB(ctx, cfg, migrate, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewMySQLStore(db), func() { _ = db.Close() }, nil
	}
}
