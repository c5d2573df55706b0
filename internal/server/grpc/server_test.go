package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	xworkv1 "github.com/rzbill/xwork/api/xwork/v1"
	cfgpkg "github.com/rzbill/xwork/internal/config"
	"github.com/rzbill/xwork/internal/extjob"
	"github.com/rzbill/xwork/internal/runtime"
	"github.com/rzbill/xwork/internal/services/extworker"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
)

const bufSize = 1 << 20

func dialer(s *grpc.Server) func(context.Context, string) (net.Conn, error) {
	lis := bufconn.Listen(bufSize)
	go func() { _ = s.Serve(lis) }()
	return func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
}

func newServerForTest(t *testing.T) (*Server, *extworker.Service, *grpc.ClientConn) {
	t.Helper()
	rt, err := runtime.Open(context.Background(), runtime.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways, Config: cfgpkg.Default()})
	if err != nil {
		t.Fatalf("rt open: %v", err)
	}
	t.Cleanup(func() { _ = rt.Close() })
	svc, err := extworker.New(rt)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	srv := New(rt, svc, nil)
	t.Cleanup(srv.Close)
	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(dialer(srv.grpc)),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return srv, svc, conn
}

func TestHealthOverGRPC(t *testing.T) {
	srv, _, conn := newServerForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	srv.UpdateHealth(ctx)

	res, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: xworkv1.ServiceName})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("status: %v", res.GetStatus())
	}
}

func TestAcquireCompleteOverGRPC(t *testing.T) {
	_, svc, conn := newServerForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := svc.Create(ctx, extjob.CreateRequest{Topic: "orders", ScopeID: "p1", ScopeVariables: map[string]any{"n": 1.0}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	c := xworkv1.NewClient(conn)
	res, err := c.Acquire(ctx, &xworkv1.AcquireRequest{Topic: "orders", WorkerID: "w1", MaxJobs: 2, LockDurationMs: 60000})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if len(res.Jobs) != 1 || res.Jobs[0].ID != created.ID || res.Jobs[0].LockOwner != "w1" {
		t.Fatalf("unexpected jobs: %+v", res.Jobs)
	}
	if res.Jobs[0].Variables["n"] != 1.0 {
		t.Fatalf("variables: %v", res.Jobs[0].Variables)
	}

	_, err = c.Complete(ctx, &xworkv1.CompleteRequest{JobID: created.ID, WorkerID: "w2"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("foreign complete: %v", err)
	}
	if st, _ := status.FromError(err); st.Message() != "w2 does not hold a lock on the requested job" {
		t.Fatalf("message: %q", st.Message())
	}

	if _, err := c.Complete(ctx, &xworkv1.CompleteRequest{JobID: created.ID, WorkerID: "w1", Variables: map[string]any{"done": true}}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	scope, err := svc.GetScope(ctx, "p1")
	if err != nil {
		t.Fatalf("scope: %v", err)
	}
	if scope.Variables["done"] != true {
		t.Fatalf("scope variables: %v", scope.Variables)
	}
}

func TestFailAndUnacquireOverGRPC(t *testing.T) {
	_, svc, conn := newServerForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := xworkv1.NewClient(conn)

	a, _ := svc.Create(ctx, extjob.CreateRequest{Topic: "t"})
	b, _ := svc.Create(ctx, extjob.CreateRequest{Topic: "t"})
	if _, err := c.Acquire(ctx, &xworkv1.AcquireRequest{Topic: "t", WorkerID: "w1", MaxJobs: 2}); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	zero := int32(0)
	if _, err := c.Fail(ctx, &xworkv1.FailRequest{JobID: a.ID, WorkerID: "w1", Retries: &zero, ErrorMessage: "boom"}); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := svc.GetJob(ctx, a.ID); status.Code(toStatus(err)) != codes.NotFound {
		t.Fatalf("exhausted job still active: %v", err)
	}

	if _, err := c.Unacquire(ctx, &xworkv1.UnacquireRequest{JobID: b.ID, WorkerID: "w1"}); err != nil {
		t.Fatalf("unacquire: %v", err)
	}
	if _, err := c.UnacquireAll(ctx, &xworkv1.UnacquireAllRequest{WorkerID: "w1"}); err != nil {
		t.Fatalf("unacquire all: %v", err)
	}

	_, err := c.Acquire(ctx, &xworkv1.AcquireRequest{WorkerID: "w1", MaxJobs: 1})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("validation: %v", err)
	}
}
