package xworkv1

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "xwork.v1.ExternalWorker"

// ExternalWorkerServer is the server API of the ExternalWorker service.
type ExternalWorkerServer interface {
	Acquire(context.Context, *AcquireRequest) (*AcquireResponse, error)
	Complete(context.Context, *CompleteRequest) (*Empty, error)
	Terminate(context.Context, *CompleteRequest) (*Empty, error)
	Fail(context.Context, *FailRequest) (*Empty, error)
	Unacquire(context.Context, *UnacquireRequest) (*Empty, error)
	UnacquireAll(context.Context, *UnacquireAllRequest) (*Empty, error)
}

func unary[Req, Resp any](method string, call func(ExternalWorkerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ExternalWorkerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ExternalWorkerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes ExternalWorker for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ExternalWorkerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Acquire", ExternalWorkerServer.Acquire),
		unary("Complete", ExternalWorkerServer.Complete),
		unary("Terminate", ExternalWorkerServer.Terminate),
		unary("Fail", ExternalWorkerServer.Fail),
		unary("Unacquire", ExternalWorkerServer.Unacquire),
		unary("UnacquireAll", ExternalWorkerServer.UnacquireAll),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "xwork/v1/external_worker",
}

// RegisterExternalWorkerServer registers srv on s.
func RegisterExternalWorkerServer(s grpc.ServiceRegistrar, srv ExternalWorkerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the ExternalWorker service.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...)
}

func (c *Client) Acquire(ctx context.Context, in *AcquireRequest, opts ...grpc.CallOption) (*AcquireResponse, error) {
	out := new(AcquireResponse)
	if err := c.invoke(ctx, "Acquire", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Complete(ctx context.Context, in *CompleteRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "Complete", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Terminate(ctx context.Context, in *CompleteRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "Terminate", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Fail(ctx context.Context, in *FailRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "Fail", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Unacquire(ctx context.Context, in *UnacquireRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "Unacquire", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UnacquireAll(ctx context.Context, in *UnacquireAllRequest, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "UnacquireAll", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}
