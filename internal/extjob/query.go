package extjob

import (
	"context"
	"errors"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
)

// Queries is the read-only surface over active and dead-letter jobs.
type Queries struct {
	*deps
}

func (q *Queries) prepare(f store.JobQuery) store.JobQuery {
	if f.Now.IsZero() {
		f.Now = q.clock.Now()
	}
	return f
}

// ListExternalWorkerJobs lists active external worker jobs matching f.
func (q *Queries) ListExternalWorkerJobs(ctx context.Context, f store.JobQuery) ([]job.Job, error) {
	f.Types = []job.Type{job.TypeExternalWorker}
	return q.ListJobs(ctx, f)
}

// ListJobs lists active jobs of any type matching f.
func (q *Queries) ListJobs(ctx context.Context, f store.JobQuery) ([]job.Job, error) {
	var out []job.Job
	err := q.store.View(ctx, func(r store.Reader) error {
		var err error
		out, err = store.Collect(r, q.prepare(f))
		return err
	})
	return out, err
}

// ListDeadLetters lists dead-letter jobs matching f.
func (q *Queries) ListDeadLetters(ctx context.Context, f store.JobQuery) ([]job.DeadLetterJob, error) {
	var out []job.DeadLetterJob
	err := q.store.View(ctx, func(r store.Reader) error {
		var err error
		out, err = store.CollectDeadLetters(r, q.prepare(f))
		return err
	})
	return out, err
}

// GetJob returns one active job.
func (q *Queries) GetJob(ctx context.Context, id string) (job.Job, error) {
	var j job.Job
	err := q.store.View(ctx, func(r store.Reader) error {
		var err error
		j, err = r.GetJob(id)
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "no job found with id %s", id)
		}
		return err
	})
	return j, err
}

// ErrorDetails returns the stored error details of an active or dead-letter
// job. A job that never recorded details yields "".
func (q *Queries) ErrorDetails(ctx context.Context, id string) (string, error) {
	var details string
	err := q.store.View(ctx, func(r store.Reader) error {
		j, err := r.GetJob(id)
		if errors.Is(err, store.ErrNotFound) {
			var dl job.DeadLetterJob
			dl, err = r.GetDeadLetter(id)
			j = dl.Job
		}
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "no job found with id %s", id)
		}
		if err != nil {
			return err
		}
		if j.StacktraceRef == "" {
			return nil
		}
		details, err = r.GetErrorDetails(j.StacktraceRef)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	return details, err
}

// DeadLetterErrorDetails is ErrorDetails restricted to the dead-letter table.
func (q *Queries) DeadLetterErrorDetails(ctx context.Context, id string) (string, error) {
	var details string
	err := q.store.View(ctx, func(r store.Reader) error {
		dl, err := r.GetDeadLetter(id)
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "no dead letter job found with id %s", id)
		}
		if err != nil || dl.StacktraceRef == "" {
			return err
		}
		details, err = r.GetErrorDetails(dl.StacktraceRef)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	return details, err
}

// GetScope returns a scope instance with its variables and lock.
func (q *Queries) GetScope(ctx context.Context, id string) (job.ScopeInstance, error) {
	var s job.ScopeInstance
	err := q.store.View(ctx, func(r store.Reader) error {
		var err error
		s, err = r.GetScope(id)
		if errors.Is(err, store.ErrNotFound) {
			return newError(ErrNotFound, "no scope instance found with id %s", id)
		}
		return err
	})
	return s, err
}
