package extjob

import (
	"context"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
	logpkg "github.com/rzbill/xwork/pkg/log"
)

// Completer reports successful or terminating work back into the engine.
type Completer struct {
	*deps
	logger logpkg.Logger
}

// Complete writes the mapped output variables to the scope instance, removes
// the job and queues a follow-up message job for the engine.
func (c *Completer) Complete(ctx context.Context, jobID, workerID string, vars map[string]any) error {
	return c.finish(ctx, jobID, workerID, vars, job.HandlerExternalWorkerComplete)
}

// Terminate is Complete routed to the terminated continuation.
func (c *Completer) Terminate(ctx context.Context, jobID, workerID string, vars map[string]any) error {
	return c.finish(ctx, jobID, workerID, vars, job.HandlerExternalWorkerTerminate)
}

func (c *Completer) finish(ctx context.Context, jobID, workerID string, vars map[string]any, handler string) error {
	if workerID == "" {
		return invalid("worker id must not be empty")
	}
	now := c.clock.Now()
	var followUp job.Job
	err := c.store.Update(ctx, func(tx store.Tx) error {
		j, err := c.loadOwned(tx, jobID, workerID)
		if err != nil {
			return err
		}
		out, err := c.resolver.ResolveOutput(vars, j.OutputMappings)
		if err != nil {
			return invalid("job %s output mapping: %v", j.ID, err)
		}
		if j.ScopeID != "" && len(out) > 0 {
			s, err := getScope(tx, j.ScopeID, j.ScopeType)
			if err != nil {
				return err
			}
			for k, v := range out {
				s.Variables[k] = v
			}
			if err := tx.PutScope(s); err != nil {
				return err
			}
		}

		if err := tx.DeleteJob(j.ID); err != nil {
			return err
		}
		if j.StacktraceRef != "" {
			if err := tx.DeleteErrorDetails(j.StacktraceRef); err != nil {
				return err
			}
		}
		followUp = job.Job{
			ID:                c.ids.NextString(),
			Type:              job.TypeMessage,
			ElementID:         j.ElementID,
			CorrelationID:     j.CorrelationID,
			ScopeID:           j.ScopeID,
			ScopeType:         j.ScopeType,
			ScopeDefinitionID: j.ScopeDefinitionID,
			SubScopeID:        j.SubScopeID,
			HandlerType:       handler,
			Retries:           c.retries,
			TenantID:          j.TenantID,
			Exclusive:         j.Exclusive,
			CreateTime:        now,
		}
		if err := tx.PutJob(followUp); err != nil {
			return err
		}
		return c.locks.Release(tx, j, workerID, now)
	})
	if err != nil {
		return err
	}
	c.logger.Debug("job finished",
		logpkg.Str("job_id", jobID),
		logpkg.Str("worker_id", workerID),
		logpkg.Str("handler", handler),
		logpkg.Str("follow_up_id", followUp.ID))
	return nil
}
