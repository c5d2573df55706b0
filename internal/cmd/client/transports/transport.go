package transports

import (
	"context"

	xworkv1 "github.com/rzbill/xwork/api/xwork/v1"
)

// WorkerTransport carries the worker protocol. Both gRPC and HTTP implement it.
type WorkerTransport interface {
	Acquire(ctx context.Context, req *xworkv1.AcquireRequest) ([]xworkv1.Job, error)
	Complete(ctx context.Context, req *xworkv1.CompleteRequest) error
	Terminate(ctx context.Context, req *xworkv1.CompleteRequest) error
	Fail(ctx context.Context, req *xworkv1.FailRequest) error
	Unacquire(ctx context.Context, req *xworkv1.UnacquireRequest) error
	UnacquireAll(ctx context.Context, req *xworkv1.UnacquireAllRequest) error
}
