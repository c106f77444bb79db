package grpcexecutor

import (
	"context"

	"github.com/dogmatiq/accord/executor"
	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified name of the executor gRPC service.
const ServiceName = "accord.executor.v1.Executor"

const (
	startFlowMethod     = "/" + ServiceName + "/StartFlow"
	suspendFlowMethod   = "/" + ServiceName + "/SuspendFlow"
	terminateFlowMethod = "/" + ServiceName + "/TerminateFlow"
	flowStatusMethod    = "/" + ServiceName + "/FlowStatus"
)

// Flows is the interface implemented by an executor to serve the executor
// API.
type Flows interface {
	StartFlow(ctx context.Context, req executor.FlowRequest) error
	SuspendFlow(ctx context.Context, processID string) error
	TerminateFlow(ctx context.Context, processID string) error
	FlowStatus(ctx context.Context, processID string) (executor.FlowStatus, error)
}

type flowRef struct {
	ProcessID string `json:"process_id"`
}

type flowStatus struct {
	Status executor.FlowStatus `json:"status"`
}

type empty struct{}

// RegisterServer registers f with s as the implementation of the executor
// service.
func RegisterServer(s grpc.ServiceRegistrar, f Flows) {
	s.RegisterService(&serviceDesc, f)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Flows)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "StartFlow",
			Handler: unary(startFlowMethod, func(ctx context.Context, f Flows, req *executor.FlowRequest) (interface{}, error) {
				return &empty{}, f.StartFlow(ctx, *req)
			}),
		},
		{
			MethodName: "SuspendFlow",
			Handler: unary(suspendFlowMethod, func(ctx context.Context, f Flows, req *flowRef) (interface{}, error) {
				return &empty{}, f.SuspendFlow(ctx, req.ProcessID)
			}),
		},
		{
			MethodName: "TerminateFlow",
			Handler: unary(terminateFlowMethod, func(ctx context.Context, f Flows, req *flowRef) (interface{}, error) {
				return &empty{}, f.TerminateFlow(ctx, req.ProcessID)
			}),
		},
		{
			MethodName: "FlowStatus",
			Handler: unary(flowStatusMethod, func(ctx context.Context, f Flows, req *flowRef) (interface{}, error) {
				s, err := f.FlowStatus(ctx, req.ProcessID)
				return &flowStatus{s}, err
			}),
		},
	},
	Streams: []grpc.StreamDesc{},
}

// unary returns a gRPC method handler that decodes a request of type T and
// passes it to fn.
func unary[T any](
	method string,
	fn func(context.Context, Flows, *T) (interface{}, error),
) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(
		srv interface{},
		ctx context.Context,
		dec func(interface{}) error,
		interceptor grpc.UnaryServerInterceptor,
	) (interface{}, error) {
		req := new(T)
		if err := dec(req); err != nil {
			return nil, err
		}

		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			res, err := fn(ctx, srv.(Flows), req.(*T))
			if err != nil {
				return nil, err
			}
			return res, nil
		}

		if interceptor == nil {
			return handler(ctx, req)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: method,
		}

		return interceptor(ctx, req, info, handler)
	}
}
