package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	cfgpkg "github.com/rzbill/xwork/internal/config"
	"github.com/rzbill/xwork/internal/runtime"
	grpcserver "github.com/rzbill/xwork/internal/server/grpc"
	httpserver "github.com/rzbill/xwork/internal/server/http"
	"github.com/rzbill/xwork/internal/services/extworker"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	"github.com/rzbill/xwork/internal/store/postgres"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

func getenvDefault(key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

// small wrapper to allow testing
var getenv = func(key string) string { return os.Getenv(key) }

type Options struct {
	DataDir       string
	GRPCAddr      string
	HTTPAddr      string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// ProcessLogger builds the process-wide logger from XWORK_LOG_LEVEL and
// XWORK_LOG_FORMAT (defaults info and text) and routes stdlib logs to it.
func ProcessLogger() (logpkg.Logger, *logpkg.Config) {
	cfg := &logpkg.Config{
		Level:  getenvDefault("XWORK_LOG_LEVEL", "info"),
		Format: getenvDefault("XWORK_LOG_FORMAT", "text"),
	}
	logger, err := logpkg.ApplyConfig(cfg)
	if err != nil {
		lvl := logpkg.InfoLevel
		if l, e := logpkg.ParseLevel(cfg.Level); e == nil {
			lvl = l
		}
		logger = logpkg.NewLogger(logpkg.WithLevel(lvl), logpkg.WithFormatter(&logpkg.TextFormatter{}))
	}
	logpkg.RedirectStdLog(logger)
	return logger, cfg
}

// Run starts gRPC and HTTP servers and blocks until ctx is cancelled or one
// of them fails, in which case it returns that error.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.DataDir == "" {
		opts.DataDir = cfgpkg.DefaultDataDir()
	}
	procLogger, logCfg := ProcessLogger()

	rt, err := runtime.Open(sctx, runtime.Options{
		DataDir:       filepath.Join(opts.DataDir, "store"),
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
		Config:        opts.Config,
		Logger:        procLogger,
		SlowCommit:    100 * time.Millisecond,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	procLogger.Info("Starting xwork server",
		logpkg.Str("grpc", opts.GRPCAddr),
		logpkg.Str("http", opts.HTTPAddr),
		logpkg.Str("store", opts.Config.Store.Backend),
		logpkg.Str("notify", opts.Config.Notify.Backend),
		logpkg.Str("level", logCfg.Level),
		logpkg.Str("format", logCfg.Format),
	)

	svc, err := extworker.NewWithOptions(rt, extworker.Options{Logger: procLogger})
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	gsrv := grpcserver.New(rt, svc, procLogger)
	hsrv := httpserver.New(rt, svc, procLogger)

	// a listener that fails stops the whole run with its error
	rctx, fail := context.WithCancelCause(sctx)
	defer fail(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := gsrv.ListenAndServe(rctx, opts.GRPCAddr); err != nil && rctx.Err() == nil {
			procLogger.Error("grpc server failed", logpkg.Err(err))
			fail(fmt.Errorf("grpc server: %w", err))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(rctx, opts.HTTPAddr); err != nil && rctx.Err() == nil {
			procLogger.Error("http server failed", logpkg.Err(err))
			fail(fmt.Errorf("http server: %w", err))
		}
	}()

	<-rctx.Done()
	// stop the servers before the deferred runtime close
	gsrv.Close()
	hsrv.Close()
	wg.Wait()
	if sctx.Err() == nil {
		return context.Cause(rctx)
	}
	return nil
}

// Migrate applies the postgres schema migrations for cfg.
func Migrate(ctx context.Context, cfg cfgpkg.Config, logger logpkg.Logger) error {
	if cfg.Store.Backend != cfgpkg.BackendPostgres {
		logger.Info("nothing to migrate", logpkg.Str("store", cfg.Store.Backend))
		return nil
	}
	s, err := postgres.Open(ctx, cfg.Store.PostgresDSN, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}
