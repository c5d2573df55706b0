package extjob

import (
	"context"
	"time"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// AcquireRequest describes one poll. ScopeType, TenantID, UserID and
// GroupIDs are optional filters and combine with AND; the user and group
// filter matches when the user or any group is linked to the job.
type AcquireRequest struct {
	Topic        string
	LockDuration time.Duration
	MaxJobs      int
	WorkerID     string

	ScopeType job.ScopeType
	TenantID  string
	UserID    string
	GroupIDs  []string
}

// Validate checks the request before any store access.
func (r AcquireRequest) Validate() error {
	if r.Topic == "" {
		return invalid("topic must not be empty")
	}
	if r.MaxJobs < 1 {
		return invalid("requested number of jobs must be greater than 0")
	}
	if r.WorkerID == "" {
		return invalid("worker id must not be empty")
	}
	if r.LockDuration <= 0 {
		return invalid("lock duration must be positive")
	}
	return nil
}

// Acquirer claims external worker jobs for polling workers.
type Acquirer struct {
	*deps
	logger logpkg.Logger
}

// Acquire claims up to MaxJobs acquirable jobs on the topic, oldest first,
// and returns them with their input variables resolved. It never waits for
// jobs to appear.
func (a *Acquirer) Acquire(ctx context.Context, req AcquireRequest) ([]job.AcquiredJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := a.clock.Now()
	until := now.Add(req.LockDuration)

	q := store.ExternalWorker(req.Topic)
	q.ScopeType = req.ScopeType
	q.TenantID = req.TenantID
	q.Unlocked = true
	q.Now = now

	var acquired []job.AcquiredJob
	err := a.store.Update(ctx, func(tx store.Tx) error {
		acquired = acquired[:0]
		return tx.ScanJobs(q, func(j job.Job) (bool, error) {
			if req.UserID != "" || len(req.GroupIDs) > 0 {
				p, err := a.identity.Participants(tx, j.CorrelationID)
				if err != nil {
					return false, err
				}
				if !p.Matches(req.UserID, req.GroupIDs) {
					return true, nil
				}
			}
			blocked, err := a.locks.Blocked(tx, j, req.WorkerID, now)
			if err != nil {
				return false, err
			}
			if blocked {
				a.logger.Debug("scope locked by another worker",
					logpkg.Str("job_id", j.ID), logpkg.Str("scope_id", j.ScopeID))
				return true, nil
			}
			ok, err := tx.ClaimJob(j.ID, req.WorkerID, until, now)
			if err != nil {
				return false, err
			}
			if !ok {
				a.logger.Warn("lost claim race", logpkg.Str("job_id", j.ID))
				return true, nil
			}
			j.Lock(req.WorkerID, until)
			if err := a.locks.Lock(tx, j, req.WorkerID, until); err != nil {
				return false, err
			}
			aj, err := a.resolveInput(tx, j)
			if err != nil {
				return false, err
			}
			acquired = append(acquired, aj)
			return len(acquired) < req.MaxJobs, nil
		})
	})
	if err != nil {
		a.logger.Error("acquire failed", logpkg.Str("topic", req.Topic), logpkg.Err(err))
		return nil, err
	}
	a.logger.Debug("acquired",
		logpkg.Str("topic", req.Topic),
		logpkg.Str("worker_id", req.WorkerID),
		logpkg.Int("count", len(acquired)))
	return acquired, nil
}

func (a *Acquirer) resolveInput(tx store.Reader, j job.Job) (job.AcquiredJob, error) {
	instanceVars := map[string]any{}
	if j.ScopeID != "" {
		s, err := getScope(tx, j.ScopeID, j.ScopeType)
		if err != nil {
			return job.AcquiredJob{}, err
		}
		instanceVars = s.Variables
	}
	vars, err := a.resolver.ResolveInput(instanceVars, j.InputMappings)
	if err != nil {
		return job.AcquiredJob{}, invalid("job %s input mapping: %v", j.ID, err)
	}
	return job.AcquiredJob{Job: j, Variables: vars}, nil
}
