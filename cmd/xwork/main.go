package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/xwork/internal/cmd/client"
	serverrun "github.com/rzbill/xwork/internal/cmd/server"
	cfgpkg "github.com/rzbill/xwork/internal/config"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

func main() {
	// CLI logger; XWORK_LOG_LEVEL applies to both CLI and server output
	level := os.Getenv("XWORK_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := clientcmd.NewRoot(apiURL)
	rootCmd.Short = "xwork external worker job queue"
	rootCmd.Long = "xwork serves lease-based external worker jobs over gRPC and HTTP. This CLI runs the server and talks to it."

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:     "start",
		Short:   "Start xwork server (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			grpcAddr, _ := cmd.Flags().GetString("grpc")
			httpAddr, _ := cmd.Flags().GetString("http")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if logLevel != "" {
				_ = os.Setenv("XWORK_LOG_LEVEL", logLevel)
			}
			if logFormat != "" {
				_ = os.Setenv("XWORK_LOG_FORMAT", logFormat)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			if err := serverrun.Run(ctx, serverrun.Options{
				DataDir:       dataDir,
				GRPCAddr:      grpcAddr,
				HTTPAddr:      httpAddr,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
			}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			// brief delay to allow logs flush
			time.Sleep(100 * time.Millisecond)
			return nil
		},
	}
	serverStartCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	serverStartCmd.Flags().String("grpc", ":50051", "gRPC listen address")
	serverStartCmd.Flags().String("http", ":8080", "HTTP listen address")
	serverStartCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	serverStartCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms (default 5)")
	serverStartCmd.Flags().String("log-level", os.Getenv("XWORK_LOG_LEVEL"), "Log level: debug|info|warn|error")
	serverStartCmd.Flags().String("log-format", os.Getenv("XWORK_LOG_FORMAT"), "Log format: text|json (default text)")
	addConfigFlags(serverStartCmd)
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// store migrate
	storeCmd := &cobra.Command{Use: "store", Short: "Job store maintenance"}
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply postgres schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serverrun.Migrate(cmd.Context(), cfg, logger)
		},
	}
	addConfigFlags(migrateCmd)
	storeCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(storeCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", os.Getenv("XWORK_CONFIG"), "Config file (JSON or YAML)")
	cmd.Flags().String("store", "", "Store backend: pebble|postgres")
	cmd.Flags().String("postgres-dsn", "", "Postgres connection string")
	cmd.Flags().String("notify", "", "Notify backend: memory|redis")
	cmd.Flags().String("redis-addr", "", "Redis address for --notify=redis")
}

// loadConfig layers file, then XWORK_* env, then flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfgpkg.FromEnv(&cfg); err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetString("store"); v != "" {
		cfg.Store.Backend = v
	}
	if v, _ := cmd.Flags().GetString("postgres-dsn"); v != "" {
		cfg.Store.PostgresDSN = v
	}
	if v, _ := cmd.Flags().GetString("notify"); v != "" {
		cfg.Notify.Backend = v
	}
	if v, _ := cmd.Flags().GetString("redis-addr"); v != "" {
		cfg.Notify.RedisAddr = v
	}
	return cfg, cfg.Validate()
}

func apiURL() string {
	if v := os.Getenv("XWORK_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
