package grpcserver

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rzbill/xwork/internal/extjob"
)

// toStatus maps engine error kinds to gRPC codes, keeping the engine's
// message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, extjob.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, extjob.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, extjob.ErrNotLockOwner), errors.Is(err, extjob.ErrLockConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
