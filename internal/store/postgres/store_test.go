package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/xwork/internal/store"
	"github.com/rzbill/xwork/internal/store/storetest"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// Runs against a disposable database named by XWORK_TEST_POSTGRES_DSN. Every
// subtest starts from empty tables.
func TestStore(t *testing.T) {
	dsn := os.Getenv("XWORK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("XWORK_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		s, err := Open(ctx, dsn, logpkg.NewLogger(logpkg.WithOutput(logpkg.NullOutput{})))
		require.NoError(t, err)
		require.NoError(t, s.Migrate())
		_, err = s.pool.Exec(ctx, `TRUNCATE xw_jobs, xw_dead_letter_jobs, xw_error_details, xw_scope_instances, xw_identity_links`)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestWhere(t *testing.T) {
	cond, args := where(store.JobQuery{Topic: "t", TenantID: "acme", LockOwner: "w1"}, true)
	require.Equal(t, "topic = $1 AND tenant_id = $2 AND lock_owner = $3", cond)
	require.Equal(t, []any{"t", "acme", "w1"}, args)

	cond, args = where(store.JobQuery{LockOwner: "w1"}, false)
	require.Equal(t, "TRUE", cond)
	require.Empty(t, args)
}
