// Package app wires configuration into a ready-to-use ledger.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/punchamoorthee/txledger/internal/config"
	"github.com/punchamoorthee/txledger/internal/domain"
	"github.com/punchamoorthee/txledger/internal/ledger"
	"github.com/punchamoorthee/txledger/internal/store"
	"github.com/punchamoorthee/txledger/internal/store/memory"
	"github.com/punchamoorthee/txledger/internal/store/postgres"
	"github.com/punchamoorthee/txledger/internal/store/sqlite"
	"go.uber.org/zap"
)

// App owns the ledger and the resources behind its storage.
type App struct {
	Ledger *ledger.Ledger
	close  func()
}

// Close releases the storage.
func (a *App) Close() {
	if a.close != nil {
		a.close()
	}
}

// New opens the configured backend, instruments it with metrics registered
// on reg and builds a ledger over it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*App, error) {
	types, err := loadTypes(cfg.TypesFile, logger)
	if err != nil {
		return nil, err
	}

	s, closeFn, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	if reg != nil {
		s = store.NewMetrics(reg).Instrument(s, cfg.Storage)
	}

	l := ledger.New(s,
		ledger.WithTypes(types),
		ledger.WithLogger(logger.Named("ledger")),
	)

	return &App{Ledger: l, close: closeFn}, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (store.Storage, func(), error) {
	storeLogger := logger.Named("store").With(zap.String("backend", cfg.Storage))

	switch cfg.Storage {
	case config.StoragePostgres:
		s, err := postgres.Connect(ctx, cfg.DBSource,
			postgres.WithTimeout(cfg.QueryTimeout),
			postgres.WithLogger(storeLogger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to connect to database: %w", err)
		}

		return s, s.Close, nil

	case config.StorageSQLite:
		s, err := sqlite.Open(cfg.SQLitePath,
			sqlite.WithTimeout(cfg.QueryTimeout),
			sqlite.WithLogger(storeLogger),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to open %s: %w", cfg.SQLitePath, err)
		}

		return s, func() {
			if err := s.Close(); err != nil {
				storeLogger.Warn("failed to close database", zap.Error(err))
			}
		}, nil

	case config.StorageMemory:
		storeLogger.Warn("memory storage is not durable; records are lost on exit")
		return memory.NewStore(memory.WithLogger(storeLogger)), func() {}, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
}

// loadTypes returns a registry with the built-in kinds plus those listed in path.
func loadTypes(path string, logger *zap.Logger) (*domain.TypeRegistry, error) {
	reg := domain.NewTypeRegistry(domain.DefaultTypes.Types()...)
	if path == "" {
		return reg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open types file: %w", err)
	}
	defer f.Close()

	added, err := domain.LoadTypes(f, reg)
	if err != nil {
		return nil, err
	}

	logger.Info("loaded transaction types", zap.String("file", path), zap.Int("count", len(added)))

	return reg, nil
}
