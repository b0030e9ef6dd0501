package cli

import (
	"fmt"
	"log/slog"

	"github.com/aretw0/ivrflow"
	"github.com/aretw0/ivrflow/internal/config"
	"github.com/aretw0/ivrflow/pkg/adapters/file"
	"github.com/aretw0/ivrflow/pkg/adapters/memory"
	"github.com/aretw0/ivrflow/pkg/adapters/redis"
	"github.com/aretw0/ivrflow/pkg/observability"
)

// Backend is an opened store plus the means to release it.
type Backend struct {
	Designer *ivrflow.Designer
	Close    func() error
}

// OpenDesigner initializes a Designer on the configured store backend.
func OpenDesigner(cfg config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Backend, error) {
	opts := []ivrflow.Option{
		ivrflow.WithLogger(logger),
		ivrflow.WithMetrics(metrics),
	}
	closeFn := func() error { return nil }

	switch cfg.Store.Backend {
	case config.BackendMemory:
		opts = append(opts, ivrflow.WithRepository(memory.NewStore()))
	case config.BackendFile:
		opts = append(opts, ivrflow.WithRepository(file.New(cfg.Store.Dir)))
	case config.BackendRedis:
		store := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix))
		locker := redis.NewLocker(store.Client(), cfg.Redis.Prefix)
		opts = append(opts, ivrflow.WithRepository(store), ivrflow.WithLocker(locker))
		closeFn = store.Close
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	logger.Debug("Store opened", "backend", cfg.Store.Backend)
	return &Backend{Designer: ivrflow.New(opts...), Close: closeFn}, nil
}
