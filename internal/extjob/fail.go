package extjob

import (
	"context"
	"time"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// FailOptions carries a worker's failure report. Retries, when set, replaces
// the job's retry count; otherwise it drops by one. RetryTimeout zero means
// the engine default.
type FailOptions struct {
	Retries      *int
	RetryTimeout time.Duration
	ErrorMessage string
	ErrorDetails string
}

// Failer records failures and moves exhausted jobs to the dead-letter table.
type Failer struct {
	*deps
	logger logpkg.Logger
}

// Fail applies the retry policy. With retries left the job is held off for
// the retry timeout; otherwise it becomes a dead-letter job.
func (f *Failer) Fail(ctx context.Context, jobID, workerID string, opts FailOptions) error {
	if workerID == "" {
		return invalid("worker id must not be empty")
	}
	if opts.Retries != nil && *opts.Retries < 0 {
		return invalid("retries must not be negative")
	}
	if opts.RetryTimeout < 0 {
		return invalid("retry timeout must not be negative")
	}
	timeout := opts.RetryTimeout
	if timeout == 0 {
		timeout = f.retryTimeout
	}

	now := f.clock.Now()
	var deadLettered bool
	var topic string
	err := f.store.Update(ctx, func(tx store.Tx) error {
		j, err := f.loadOwned(tx, jobID, workerID)
		if err != nil {
			return err
		}
		held := j
		topic = j.Topic()

		if opts.Retries != nil {
			j.Retries = *opts.Retries
		} else {
			j.Retries--
		}
		if j.Retries < 0 {
			j.Retries = 0
		}
		j.ExceptionMessage = opts.ErrorMessage
		if opts.ErrorDetails != "" {
			if j.StacktraceRef == "" {
				j.StacktraceRef = j.ID
			}
			if err := tx.PutErrorDetails(j.StacktraceRef, opts.ErrorDetails); err != nil {
				return err
			}
		}

		deadLettered = j.Retries <= 0
		if deadLettered {
			j.Unlock()
			if err := tx.DeleteJob(j.ID); err != nil {
				return err
			}
			if err := tx.PutDeadLetter(job.DeadLetterJob{Job: j}); err != nil {
				return err
			}
		} else {
			j.HoldOff(now.Add(timeout))
			if err := tx.PutJob(j); err != nil {
				return err
			}
		}
		return f.locks.Release(tx, held, workerID, now)
	})
	if err != nil {
		return err
	}
	if deadLettered {
		f.logger.Info("job moved to dead letter",
			logpkg.Str("job_id", jobID), logpkg.Str("topic", topic), logpkg.Str("error_message", opts.ErrorMessage))
		return nil
	}
	f.logger.Debug("job failed, holding off",
		logpkg.Str("job_id", jobID), logpkg.Duration("retry_timeout", timeout))
	return nil
}
