// Package grpcserver hosts the gRPC server for xwork, registering the
// ExternalWorker service and the standard health service and delegating to
// the extworker service layer.
//
// Example:
//
//	svc, _ := extworker.New(rt)
//	s := grpcserver.New(rt, svc, logger)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":50051")
package grpcserver
