package grpcserver

import (
	"context"
	"time"

	xworkv1 "github.com/rzbill/xwork/api/xwork/v1"
	"github.com/rzbill/xwork/internal/extjob"
	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/services/extworker"
)

// externalWorkerSvc adapts the extworker service to the wire API.
type externalWorkerSvc struct {
	svc *extworker.Service
}

func (e *externalWorkerSvc) Acquire(ctx context.Context, req *xworkv1.AcquireRequest) (*xworkv1.AcquireResponse, error) {
	jobs, err := e.svc.Acquire(ctx, extworker.AcquireParams{
		AcquireRequest: extjob.AcquireRequest{
			Topic:        req.Topic,
			LockDuration: time.Duration(req.LockDurationMs) * time.Millisecond,
			MaxJobs:      int(req.MaxJobs),
			WorkerID:     req.WorkerID,
			ScopeType:    job.ScopeType(req.ScopeType),
			TenantID:     req.TenantID,
			UserID:       req.UserID,
			GroupIDs:     req.GroupIDs,
		},
		Wait: time.Duration(req.WaitMs) * time.Millisecond,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	out := &xworkv1.AcquireResponse{Jobs: make([]xworkv1.Job, 0, len(jobs))}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, toWire(j))
	}
	return out, nil
}

func (e *externalWorkerSvc) Complete(ctx context.Context, req *xworkv1.CompleteRequest) (*xworkv1.Empty, error) {
	return &xworkv1.Empty{}, toStatus(e.svc.Complete(ctx, req.JobID, req.WorkerID, req.Variables))
}

func (e *externalWorkerSvc) Terminate(ctx context.Context, req *xworkv1.CompleteRequest) (*xworkv1.Empty, error) {
	return &xworkv1.Empty{}, toStatus(e.svc.Terminate(ctx, req.JobID, req.WorkerID, req.Variables))
}

func (e *externalWorkerSvc) Fail(ctx context.Context, req *xworkv1.FailRequest) (*xworkv1.Empty, error) {
	opts := extjob.FailOptions{
		RetryTimeout: time.Duration(req.RetryTimeoutMs) * time.Millisecond,
		ErrorMessage: req.ErrorMessage,
		ErrorDetails: req.ErrorDetails,
	}
	if req.Retries != nil {
		r := int(*req.Retries)
		opts.Retries = &r
	}
	return &xworkv1.Empty{}, toStatus(e.svc.Fail(ctx, req.JobID, req.WorkerID, opts))
}

func (e *externalWorkerSvc) Unacquire(ctx context.Context, req *xworkv1.UnacquireRequest) (*xworkv1.Empty, error) {
	return &xworkv1.Empty{}, toStatus(e.svc.Unacquire(ctx, req.JobID, req.WorkerID))
}

func (e *externalWorkerSvc) UnacquireAll(ctx context.Context, req *xworkv1.UnacquireAllRequest) (*xworkv1.Empty, error) {
	return &xworkv1.Empty{}, toStatus(e.svc.UnacquireAll(ctx, req.WorkerID, req.TenantID))
}

func toWire(j job.AcquiredJob) xworkv1.Job {
	w := xworkv1.Job{
		ID:                 j.ID,
		Topic:              j.Topic(),
		ElementID:          j.ElementID,
		CorrelationID:      j.CorrelationID,
		ScopeID:            j.ScopeID,
		ScopeType:          string(j.ScopeType),
		TenantID:           j.TenantID,
		Retries:            int32(j.Retries),
		ExceptionMessage:   j.ExceptionMessage,
		LockExpirationTime: j.LockExpirationTime,
		Exclusive:          j.Exclusive,
		CreateTime:         j.CreateTime,
		Variables:          j.Variables,
	}
	if j.LockOwner != nil {
		w.LockOwner = *j.LockOwner
	}
	return w
}
