package extjob

import (
	"context"
	"errors"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// DeadLetterManager moves jobs between the active and dead-letter tables.
type DeadLetterManager struct {
	*deps
	logger logpkg.Logger
}

// MoveToDeadLetter moves any active job to the dead-letter table, dropping
// its lock.
func (m *DeadLetterManager) MoveToDeadLetter(ctx context.Context, jobID string) (job.DeadLetterJob, error) {
	now := m.clock.Now()
	var dl job.DeadLetterJob
	err := m.store.Update(ctx, func(tx store.Tx) error {
		j, err := tx.GetJob(jobID)
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "no job found with id %s", jobID)
		}
		if err != nil {
			return err
		}
		held := j
		j.Unlock()
		if err := tx.DeleteJob(j.ID); err != nil {
			return err
		}
		dl = job.DeadLetterJob{Job: j}
		if err := tx.PutDeadLetter(dl); err != nil {
			return err
		}
		if held.LockOwner != nil {
			return m.locks.Release(tx, held, *held.LockOwner, now)
		}
		return nil
	})
	if err != nil {
		return job.DeadLetterJob{}, err
	}
	m.logger.Info("job moved to dead letter", logpkg.Str("job_id", jobID), logpkg.Str("type", string(dl.Type)))
	return dl, nil
}

// MoveToExecutable turns a dead-letter job back into an unlocked active job
// of its original type with newRetries retries.
func (m *DeadLetterManager) MoveToExecutable(ctx context.Context, deadLetterJobID string, newRetries int) (job.Job, error) {
	if newRetries < 1 {
		return job.Job{}, invalid("retries must be greater than 0")
	}
	var j job.Job
	err := m.store.Update(ctx, func(tx store.Tx) error {
		dl, err := tx.GetDeadLetter(deadLetterJobID)
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "no dead letter job found with id %s", deadLetterJobID)
		}
		if err != nil {
			return err
		}
		j = dl.Job
		j.Retries = newRetries
		j.Unlock()
		if err := tx.DeleteDeadLetter(dl.ID); err != nil {
			return err
		}
		return tx.PutJob(j)
	})
	if err != nil {
		return job.Job{}, err
	}
	m.logger.Info("dead letter job requeued", logpkg.Str("job_id", j.ID), logpkg.Int("retries", newRetries))
	if j.Type == job.TypeExternalWorker {
		m.available(j.Topic())
	}
	return j, nil
}

// Delete discards a dead-letter job and its error details.
func (m *DeadLetterManager) Delete(ctx context.Context, deadLetterJobID string) error {
	err := m.store.Update(ctx, func(tx store.Tx) error {
		dl, err := tx.GetDeadLetter(deadLetterJobID)
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "no dead letter job found with id %s", deadLetterJobID)
		}
		if err != nil {
			return err
		}
		if dl.StacktraceRef != "" {
			if err := tx.DeleteErrorDetails(dl.StacktraceRef); err != nil {
				return err
			}
		}
		return tx.DeleteDeadLetter(dl.ID)
	})
	if err != nil {
		return err
	}
	m.logger.Info("dead letter job deleted", logpkg.Str("job_id", deadLetterJobID))
	return nil
}
