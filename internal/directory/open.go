package directory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RobinCoderZhao/mcp-apps/pkg/storage"
)

// Memory selects the fixture-backed MemoryStore.
const Memory storage.Driver = "memory"

// Handle is an opened store together with its release function.
type Handle struct {
	Store Store
	close func() error
}

// Close releases the underlying connection, if any.
func (h *Handle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// Open builds the Store selected by cfg.Driver. The memory driver is seeded
// with the embedded fixtures; the sqlite driver gets its schema created.
// Postgres schemas are expected to be migrated beforehand.
func Open(ctx context.Context, cfg storage.Config, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Driver {
	case Memory, "":
		fx, err := LoadFixtures(time.Now())
		if err != nil {
			return nil, err
		}
		store := NewMemoryStore()
		if err := store.Seed(ctx, fx); err != nil {
			return nil, err
		}
		logger.Info("directory store ready", "driver", Memory, "doctors", len(fx.Practitioners), "slots", len(fx.Slots))
		return &Handle{Store: store}, nil

	case storage.SQLite:
		db, err := storage.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := NewSQLStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("directory store ready", "driver", storage.SQLite)
		return &Handle{Store: store, close: db.Close}, nil

	case storage.Postgres:
		pool, err := NewPool(ctx, cfg.DSN, 0)
		if err != nil {
			return nil, err
		}
		logger.Info("directory store ready", "driver", storage.Postgres)
		return &Handle{Store: NewPostgresStore(pool), close: func() error {
			pool.Close()
			return nil
		}}, nil

	default:
		return nil, fmt.Errorf("unsupported directory driver: %q", cfg.Driver)
	}
}
