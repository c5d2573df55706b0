package extworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/rzbill/xwork/internal/config"
	"github.com/rzbill/xwork/internal/extjob"
	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/runtime"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
)

func newServiceForTest(t *testing.T, mutate func(*cfgpkg.Config)) *Service {
	t.Helper()
	cfg := cfgpkg.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := runtime.Open(context.Background(), runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever, Config: cfg})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	svc, err := NewWithOptions(rt, Options{PollInterval: 20 * time.Millisecond})
	require.NoError(t, err)
	return svc
}

func TestAcquireAppliesDefaults(t *testing.T) {
	svc := newServiceForTest(t, func(c *cfgpkg.Config) { c.Jobs.MaxJobsPerAcquire = 2 })
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, extjob.CreateRequest{Topic: "orders"})
		require.NoError(t, err)
	}

	before := time.Now()
	jobs, err := svc.Acquire(ctx, AcquireParams{AcquireRequest: extjob.AcquireRequest{Topic: "orders", MaxJobs: 10, WorkerID: "w1"}})
	require.NoError(t, err)
	require.Len(t, jobs, 2, "capped at maxJobsPerAcquire")
	assert.WithinDuration(t, before.Add(5*time.Minute), *jobs[0].LockExpirationTime, 5*time.Second)
}

func TestAcquireWaitsForCreate(t *testing.T) {
	svc := newServiceForTest(t, nil)
	ctx := context.Background()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_, _ = svc.Create(ctx, extjob.CreateRequest{Topic: "late"})
	}()

	start := time.Now()
	jobs, err := svc.Acquire(ctx, AcquireParams{
		AcquireRequest: extjob.AcquireRequest{Topic: "late", MaxJobs: 1, WorkerID: "w1", LockDuration: time.Minute},
		Wait:           5 * time.Second,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestAcquireWaitTimesOut(t *testing.T) {
	svc := newServiceForTest(t, nil)
	start := time.Now()
	jobs, err := svc.Acquire(context.Background(), AcquireParams{
		AcquireRequest: extjob.AcquireRequest{Topic: "empty", MaxJobs: 1, WorkerID: "w1"},
		Wait:           100 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquireWaitValidatesFirst(t *testing.T) {
	svc := newServiceForTest(t, nil)
	_, err := svc.Acquire(context.Background(), AcquireParams{
		AcquireRequest: extjob.AcquireRequest{Topic: "t", WorkerID: "w1"},
		Wait:           time.Second,
	})
	require.ErrorIs(t, err, extjob.ErrInvalidArgument)
}

func TestCreateUsesDefaultTenant(t *testing.T) {
	svc := newServiceForTest(t, func(c *cfgpkg.Config) { c.DefaultTenantID = "acme" })
	ctx := context.Background()

	j, err := svc.Create(ctx, extjob.CreateRequest{Topic: "t"})
	require.NoError(t, err)
	assert.Equal(t, "acme", j.TenantID)

	j, err = svc.Create(ctx, extjob.CreateRequest{Topic: "t", TenantID: "globex"})
	require.NoError(t, err)
	assert.Equal(t, "globex", j.TenantID)
}

func TestIdentityLinksFilterAcquire(t *testing.T) {
	svc := newServiceForTest(t, nil)
	ctx := context.Background()
	j, err := svc.Create(ctx, extjob.CreateRequest{Topic: "t"})
	require.NoError(t, err)

	err = svc.AddIdentityLinks(ctx, job.IdentityLink{CorrelationID: j.CorrelationID})
	require.ErrorIs(t, err, extjob.ErrInvalidArgument)

	require.NoError(t, svc.AddIdentityLinks(ctx, job.IdentityLink{CorrelationID: j.CorrelationID, GroupID: "ops"}))
	jobs, err := svc.Acquire(ctx, AcquireParams{AcquireRequest: extjob.AcquireRequest{Topic: "t", MaxJobs: 1, WorkerID: "w", GroupIDs: []string{"dev"}}})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	require.NoError(t, svc.RemoveIdentityLinks(ctx, job.IdentityLink{CorrelationID: j.CorrelationID, GroupID: "ops"}))
	require.NoError(t, svc.AddIdentityLinks(ctx, job.IdentityLink{CorrelationID: j.CorrelationID, GroupID: "dev"}))
	jobs, err = svc.Acquire(ctx, AcquireParams{AcquireRequest: extjob.AcquireRequest{Topic: "t", MaxJobs: 1, WorkerID: "w", GroupIDs: []string{"dev"}}})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}
