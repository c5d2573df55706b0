package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	cfgpkg "github.com/rzbill/xwork/internal/config"
	"github.com/rzbill/xwork/internal/identity"
	"github.com/rzbill/xwork/internal/notify"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	"github.com/rzbill/xwork/internal/store"
	pebblejobs "github.com/rzbill/xwork/internal/store/pebble"
	"github.com/rzbill/xwork/internal/store/postgres"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	DataDir string
	Fsync   pebblestore.FsyncMode
	// FsyncInterval is the group-commit window when Fsync is FsyncModeInterval.
	FsyncInterval time.Duration
	Config        cfgpkg.Config
	Logger        logpkg.Logger
	// SlowCommit logs pebble commits slower than this. Zero disables it.
	SlowCommit time.Duration
}

// Runtime wires the job store, identity index and notifier for one node.
type Runtime struct {
	config   cfgpkg.Config
	logger   logpkg.Logger
	store    store.Store
	db       *pebblestore.DB
	pg       *postgres.Store
	identity *identity.Index
	notifier notify.Notifier
}

// Open opens the configured store backend, loads the identity links and
// connects the notifier.
func Open(ctx context.Context, opts Options) (*Runtime, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}
	rt := &Runtime{config: opts.Config, logger: logger.WithComponent("runtime")}

	switch opts.Config.Store.Backend {
	case cfgpkg.BackendPostgres:
		pg, err := postgres.Open(ctx, opts.Config.Store.PostgresDSN, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		rt.pg, rt.store = pg, pg
	default:
		var metrics pebblestore.MetricsHook
		if opts.SlowCommit > 0 {
			metrics = pebblestore.SlowCommitLogger{Logger: logger.WithComponent("pebble"), Threshold: opts.SlowCommit}
		}
		db, err := pebblestore.Open(pebblestore.Options{
			DataDir:       opts.DataDir,
			Fsync:         opts.Fsync,
			FsyncInterval: opts.FsyncInterval,
			Metrics:       metrics,
		})
		if err != nil {
			return nil, err
		}
		s, err := pebblejobs.Open(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		rt.db, rt.store = db, s
	}

	if rt.pg != nil {
		rt.identity = identity.NewSharedIndex(rt.store)
	} else {
		rt.identity = identity.NewIndex(rt.store)
	}
	if err := rt.identity.Load(ctx); err != nil {
		_ = rt.store.Close()
		return nil, fmt.Errorf("load identity links: %w", err)
	}

	switch opts.Config.Notify.Backend {
	case cfgpkg.NotifyRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     opts.Config.Notify.RedisAddr,
			Password: opts.Config.Notify.RedisPassword,
		})
		n, err := notify.NewRedis(ctx, rdb, logger)
		if err != nil {
			_ = rdb.Close()
			_ = rt.store.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.notifier = n
	default:
		rt.notifier = notify.NewMemory()
	}

	rt.logger.Info("runtime opened",
		logpkg.Str("store", opts.Config.Store.Backend),
		logpkg.Str("notify", opts.Config.Notify.Backend))
	return rt, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	var errs []error
	if r.notifier != nil {
		errs = append(errs, r.notifier.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

// CheckHealth pings the store and, for redis, the notifier.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.store == nil {
		return errors.New("store not open")
	}
	if r.pg != nil {
		if err := r.pg.Ping(ctx); err != nil {
			return err
		}
	} else if err := r.store.View(ctx, func(store.Reader) error { return nil }); err != nil {
		return err
	}
	if p, ok := r.notifier.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Shared reports whether other processes may write to the same store.
func (r *Runtime) Shared() bool { return r.pg != nil }

// Store returns the job store.
func (r *Runtime) Store() store.Store { return r.store }

// Identity returns the identity link index.
func (r *Runtime) Identity() *identity.Index { return r.identity }

// Notifier returns the availability notifier.
func (r *Runtime) Notifier() notify.Notifier { return r.notifier }

// DB exposes the pebble database, nil for other backends.
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// Logger returns the root logger.
func (r *Runtime) Logger() logpkg.Logger { return r.logger }
