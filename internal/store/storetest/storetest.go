// Package storetest holds behavior tests every store.Store backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
)

// Run exercises s. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("JobRoundTripAndIndexes", func(t *testing.T) { testJobRoundTrip(t, newStore(t)) })
	t.Run("ClaimIsCompareAndSwap", func(t *testing.T) { testClaim(t, newStore(t)) })
	t.Run("ConcurrentClaims", func(t *testing.T) { testConcurrentClaims(t, newStore(t)) })
	t.Run("FailedUpdateRollsBack", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("DeadLettersAndDetails", func(t *testing.T) { testDeadLetters(t, newStore(t)) })
	t.Run("ScopesAndIdentityLinks", func(t *testing.T) { testScopesAndLinks(t, newStore(t)) })
	t.Run("ScanPagesAndWrites", func(t *testing.T) { testScanWithWrites(t, newStore(t)) })
}

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newJob(id, topic string) job.Job {
	return job.Job{
		ID:                   id,
		Type:                 job.TypeExternalWorker,
		CorrelationID:        "corr-" + id,
		ScopeID:              "scope-1",
		ScopeType:            job.ScopeBPMN,
		HandlerType:          job.HandlerExternalWorker,
		HandlerConfiguration: topic,
		Retries:              3,
		CreateTime:           t0,
	}
}

func put(t *testing.T, s store.Store, jobs ...job.Job) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), func(tx store.Tx) error {
		for _, j := range jobs {
			if err := tx.PutJob(j); err != nil {
				return err
			}
		}
		return nil
	}))
}

func list(t *testing.T, s store.Store, q store.JobQuery) []string {
	t.Helper()
	var ids []string
	require.NoError(t, s.View(context.Background(), func(r store.Reader) error {
		jobs, err := store.Collect(r, q)
		for _, j := range jobs {
			ids = append(ids, j.ID)
		}
		return err
	}))
	return ids
}

func testJobRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := newJob("0001", "invoices")
	a.TenantID = "acme"
	a.Exclusive = true
	b := newJob("0002", "invoices")
	c := newJob("0003", "shipping")
	c.ScopeID = "scope-2"
	put(t, s, c, a, b)

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		got, err := r.GetJob("0001")
		require.NoError(t, err)
		assert.Equal(t, "acme", got.TenantID)
		assert.True(t, got.Exclusive)
		assert.True(t, got.CreateTime.Equal(t0))
		_, err = r.GetJob("missing")
		assert.True(t, errors.Is(err, store.ErrNotFound))
		return nil
	}))

	assert.Equal(t, []string{"0001", "0002", "0003"}, list(t, s, store.JobQuery{}))
	assert.Equal(t, []string{"0001", "0002"}, list(t, s, store.ExternalWorker("invoices")))
	assert.Equal(t, []string{"0003"}, list(t, s, store.JobQuery{ScopeID: "scope-2"}))
	assert.Equal(t, []string{"0001"}, list(t, s, store.JobQuery{TenantID: "acme"}))
	assert.Equal(t, []string{"0002"}, list(t, s, store.JobQuery{ID: "0002"}))
	assert.Equal(t, []string{"0002", "0003"}, list(t, s, store.JobQuery{AfterID: "0001"}))
	assert.Len(t, list(t, s, store.JobQuery{Limit: 2}), 2)

	// moving a job to another topic drops the old index entry
	b.HandlerConfiguration = "shipping"
	put(t, s, b)
	assert.Equal(t, []string{"0001"}, list(t, s, store.ExternalWorker("invoices")))
	assert.Equal(t, []string{"0002", "0003"}, list(t, s, store.ExternalWorker("shipping")))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.DeleteJob("0001") }))
	assert.Empty(t, list(t, s, store.ExternalWorker("invoices")))
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error { return tx.DeleteJob("0001") }), "delete is idempotent")
}

func testClaim(t *testing.T, s store.Store) {
	ctx := context.Background()
	put(t, s, newJob("0001", "t"))
	until := t0.Add(30 * time.Minute)

	claim := func(owner string, now time.Time) bool {
		var ok bool
		require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
			var err error
			ok, err = tx.ClaimJob("0001", owner, now.Add(30*time.Minute), now)
			return err
		}))
		return ok
	}

	assert.True(t, claim("w1", t0))
	assert.False(t, claim("w2", t0.Add(time.Minute)), "live lease")
	assert.Equal(t, []string{"0001"}, list(t, s, store.JobQuery{LockOwner: "w1"}))
	assert.Equal(t, []string{"0001"}, list(t, s, store.JobQuery{Locked: true}))
	assert.Empty(t, list(t, s, store.JobQuery{Unlocked: true, Now: t0.Add(time.Minute)}))

	assert.True(t, claim("w2", until.Add(time.Second)), "expired lease")
	assert.Empty(t, list(t, s, store.JobQuery{LockOwner: "w1"}))
	assert.Equal(t, []string{"0001"}, list(t, s, store.JobQuery{LockOwner: "w2"}))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		ok, err := tx.ClaimJob("missing", "w1", until, t0)
		assert.False(t, ok)
		return err
	}))
}

func testConcurrentClaims(t *testing.T, s store.Store) {
	ctx := context.Background()
	put(t, s, newJob("0001", "t"))
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Update(ctx, func(tx store.Tx) error {
				ok, err := tx.ClaimJob("0001", fmt.Sprintf("w%d", i), t0.Add(time.Hour), t0)
				if ok {
					wins.Add(1)
				}
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutJob(newJob("0001", "t")); err != nil {
			return err
		}
		if _, err := tx.GetJob("0001"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Empty(t, list(t, s, store.JobQuery{}))
}

func testDeadLetters(t *testing.T, s store.Store) {
	ctx := context.Background()
	j := newJob("0001", "t")
	j.ExceptionMessage = "failed"
	j.StacktraceRef = "0001"
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutDeadLetter(job.DeadLetterJob{Job: j}); err != nil {
			return err
		}
		return tx.PutErrorDetails("0001", "stack\ntrace")
	}))
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		dl, err := r.GetDeadLetter("0001")
		require.NoError(t, err)
		assert.Equal(t, "failed", dl.ExceptionMessage)
		details, err := r.GetErrorDetails("0001")
		require.NoError(t, err)
		assert.Equal(t, "stack\ntrace", details)

		all, err := store.CollectDeadLetters(r, store.JobQuery{Topic: "t", WithException: true})
		require.NoError(t, err)
		assert.Len(t, all, 1)
		none, err := store.CollectDeadLetters(r, store.JobQuery{Topic: "other"})
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	}))
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.DeleteErrorDetails("0001"); err != nil {
			return err
		}
		return tx.DeleteDeadLetter("0001")
	}))
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		_, err := r.GetDeadLetter("0001")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = r.GetErrorDetails("0001")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))
}

func testScopesAndLinks(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner, at := "w1", t0
	require.Error(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutScope(job.ScopeInstance{ID: "s1", ScopeType: job.ScopeCMMN, LockOwner: &owner, LockTime: &at, Variables: map[string]any{"x": "y"}}); err != nil {
			return err
		}
		for _, l := range []job.IdentityLink{
			{CorrelationID: "c1", UserID: "kermit"},
			{CorrelationID: "c1", GroupID: "muppets"},
			{CorrelationID: "c2", GroupID: "admins"},
		} {
			if err := tx.PutIdentityLink(l); err != nil {
				return err
			}
		}
		return tx.PutIdentityLink(job.IdentityLink{CorrelationID: "c3"})
	}), "invalid link fails the transaction")
	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		_, err := r.GetScope("s1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	}))

	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		if err := tx.PutScope(job.ScopeInstance{ID: "s1", ScopeType: job.ScopeCMMN, LockOwner: &owner, LockTime: &at, Variables: map[string]any{"x": "y"}}); err != nil {
			return err
		}
		for _, l := range []job.IdentityLink{
			{CorrelationID: "c1", UserID: "kermit"},
			{CorrelationID: "c1", GroupID: "muppets"},
			{CorrelationID: "c2", GroupID: "admins"},
		} {
			if err := tx.PutIdentityLink(l); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(r store.Reader) error {
		sc, err := r.GetScope("s1")
		require.NoError(t, err)
		require.NotNil(t, sc.LockOwner)
		assert.Equal(t, "w1", *sc.LockOwner)
		assert.True(t, sc.LockTime.Equal(t0))
		assert.Equal(t, "y", sc.Variables["x"])

		var c1, all []job.IdentityLink
		require.NoError(t, r.ScanIdentityLinks("c1", func(l job.IdentityLink) error {
			c1 = append(c1, l)
			return nil
		}))
		require.NoError(t, r.ScanIdentityLinks("", func(l job.IdentityLink) error {
			all = append(all, l)
			return nil
		}))
		assert.ElementsMatch(t, []job.IdentityLink{{CorrelationID: "c1", UserID: "kermit"}, {CorrelationID: "c1", GroupID: "muppets"}}, c1)
		assert.Len(t, all, 3)
		return nil
	}))
}

func testScanWithWrites(t *testing.T, s store.Store) {
	ctx := context.Background()
	var jobs []job.Job
	for i := 0; i < 300; i++ {
		jobs = append(jobs, newJob(fmt.Sprintf("%04d", i), "bulk"))
	}
	put(t, s, jobs...)

	claimed := 0
	require.NoError(t, s.Update(ctx, func(tx store.Tx) error {
		return tx.ScanJobs(store.JobQuery{Topic: "bulk", Unlocked: true, Now: t0}, func(j job.Job) (bool, error) {
			ok, err := tx.ClaimJob(j.ID, "w1", t0.Add(time.Minute), t0)
			if ok {
				claimed++
			}
			return true, err
		})
	}))
	assert.Equal(t, 300, claimed)
	assert.Len(t, list(t, s, store.JobQuery{LockOwner: "w1"}), 300)
}
