// Package transports provides pluggable transport implementations for the CLI.
package transports

import (
	"context"

	"google.golang.org/grpc"

	xworkv1 "github.com/rzbill/xwork/api/xwork/v1"
)

// GrpcTransport implements WorkerTransport over gRPC.
type GrpcTransport struct {
	dial func(ctx context.Context) (*grpc.ClientConn, error)
}

// NewGrpcTransport constructs a new GrpcTransport using the provided dialer.
func NewGrpcTransport(dial func(ctx context.Context) (*grpc.ClientConn, error)) *GrpcTransport {
	return &GrpcTransport{dial: dial}
}

func (t *GrpcTransport) withClient(ctx context.Context, fn func(cli *xworkv1.Client) error) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	return fn(xworkv1.NewClient(conn))
}

func (t *GrpcTransport) Acquire(ctx context.Context, req *xworkv1.AcquireRequest) ([]xworkv1.Job, error) {
	var jobs []xworkv1.Job
	err := t.withClient(ctx, func(cli *xworkv1.Client) error {
		res, err := cli.Acquire(ctx, req)
		if err != nil {
			return err
		}
		jobs = res.Jobs
		return nil
	})
	return jobs, err
}

func (t *GrpcTransport) Complete(ctx context.Context, req *xworkv1.CompleteRequest) error {
	return t.withClient(ctx, func(cli *xworkv1.Client) error {
		_, err := cli.Complete(ctx, req)
		return err
	})
}

func (t *GrpcTransport) Terminate(ctx context.Context, req *xworkv1.CompleteRequest) error {
	return t.withClient(ctx, func(cli *xworkv1.Client) error {
		_, err := cli.Terminate(ctx, req)
		return err
	})
}

func (t *GrpcTransport) Fail(ctx context.Context, req *xworkv1.FailRequest) error {
	return t.withClient(ctx, func(cli *xworkv1.Client) error {
		_, err := cli.Fail(ctx, req)
		return err
	})
}

func (t *GrpcTransport) Unacquire(ctx context.Context, req *xworkv1.UnacquireRequest) error {
	return t.withClient(ctx, func(cli *xworkv1.Client) error {
		_, err := cli.Unacquire(ctx, req)
		return err
	})
}

func (t *GrpcTransport) UnacquireAll(ctx context.Context, req *xworkv1.UnacquireAllRequest) error {
	return t.withClient(ctx, func(cli *xworkv1.Client) error {
		_, err := cli.UnacquireAll(ctx, req)
		return err
	})
}
