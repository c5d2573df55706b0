package serverrun

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	cfgpkg "github.com/rzbill/xwork/internal/config"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

func TestGetenvDefault(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		expected string
	}{
		{name: "environment variable set", envValue: "env_value", expected: "env_value"},
		{name: "environment variable empty", envValue: "", expected: "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XWORK_TEST_VAR", tt.envValue)
			if got := getenvDefault("XWORK_TEST_VAR", "default"); got != tt.expected {
				t.Errorf("getenvDefault = %s, expected %s", got, tt.expected)
			}
		})
	}
}

func TestProcessLoggerFallsBackOnBadFormat(t *testing.T) {
	t.Setenv("XWORK_LOG_LEVEL", "warn")
	t.Setenv("XWORK_LOG_FORMAT", "yaml")
	logger, cfg := ProcessLogger()
	if logger == nil {
		t.Fatalf("nil logger")
	}
	if cfg.Level != "warn" {
		t.Errorf("level = %s", cfg.Level)
	}
}

func TestMigrateSkipsPebble(t *testing.T) {
	logger := logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{}))
	if err := Migrate(context.Background(), cfgpkg.Default(), logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

// TestRunIntegration starts both servers on ephemeral ports and stops them.
func TestRunIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	opts := Options{
		DataDir:       t.TempDir(),
		GRPCAddr:      "127.0.0.1:0",
		HTTPAddr:      "127.0.0.1:0",
		Fsync:         pebblestore.FsyncModeNever,
		FsyncInterval: time.Millisecond,
		Config:        cfgpkg.Default(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := Run(ctx, opts); err != nil {
		t.Errorf("run: %v", err)
	}
}

func TestRunStopsWhenListenerFails(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	opts := Options{
		DataDir:  t.TempDir(),
		GRPCAddr: "127.0.0.1:0",
		HTTPAddr: busy.Addr().String(),
		Fsync:    pebblestore.FsyncModeNever,
		Config:   cfgpkg.Default(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	err = Run(ctx, opts)
	if err == nil || !strings.Contains(err.Error(), "http server") {
		t.Fatalf("run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("run waited for the deadline (%s)", time.Since(start))
	}
}
