package extjob

import (
	"context"
	"errors"

	"github.com/rzbill/xwork/internal/store"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// Unacquirer hands leases back voluntarily, without a hold-off.
type Unacquirer struct {
	*deps
	logger logpkg.Logger
}

// UnacquireJob releases workerID's lease on the job. A job without an owner
// is left alone.
func (u *Unacquirer) UnacquireJob(ctx context.Context, jobID, workerID string) error {
	if workerID == "" {
		return invalid("worker id must not be empty")
	}
	now := u.clock.Now()
	var topic string
	released := false
	err := u.store.Update(ctx, func(tx store.Tx) error {
		j, err := tx.GetJob(jobID)
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "no external worker job found with id %s", jobID)
		}
		if err != nil {
			return err
		}
		if j.LockOwner == nil {
			return nil
		}
		if *j.LockOwner != workerID {
			return newError(ErrLockConflict, "%s is locked with a different worker id", j)
		}
		held := j
		j.Unlock()
		if err := tx.PutJob(j); err != nil {
			return err
		}
		topic, released = j.Topic(), true
		return u.locks.Release(tx, held, workerID, now)
	})
	if err != nil {
		return err
	}
	if released {
		u.logger.Debug("job unacquired", logpkg.Str("job_id", jobID), logpkg.Str("worker_id", workerID))
		u.available(topic)
	}
	return nil
}

// UnacquireAllForWorker releases every lease held by workerID. With a
// tenant, the call fails without changes if the worker holds a job of any
// other tenant.
func (u *Unacquirer) UnacquireAllForWorker(ctx context.Context, workerID string, tenantID *string) error {
	if workerID == "" {
		return invalid("worker id must not be empty")
	}
	now := u.clock.Now()
	var topics map[string]struct{}
	var count int
	err := u.store.Update(ctx, func(tx store.Tx) error {
		topics, count = map[string]struct{}{}, 0
		held, err := store.Collect(tx, store.JobQuery{LockOwner: workerID})
		if err != nil {
			return err
		}
		if tenantID != nil {
			for _, j := range held {
				if j.TenantID != *tenantID {
					return invalid("provided worker id has external worker jobs from different tenant")
				}
			}
		}
		for _, j := range held {
			j.Unlock()
			if err := tx.PutJob(j); err != nil {
				return err
			}
			topics[j.Topic()] = struct{}{}
		}
		// every lease of the worker is gone now, so each release sees no
		// other held job and clears the scope lock if the worker owns it
		released := map[string]bool{}
		for _, j := range held {
			if !scoped(j) || released[j.ScopeID] {
				continue
			}
			released[j.ScopeID] = true
			if err := u.locks.Release(tx, j, workerID, now); err != nil {
				return err
			}
		}
		count = len(held)
		return nil
	})
	if err != nil {
		return err
	}
	u.logger.Info("worker leases released", logpkg.Str("worker_id", workerID), logpkg.Int("count", count))
	for t := range topics {
		u.available(t)
	}
	return nil
}
