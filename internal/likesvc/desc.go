// Package likesvc serves the calibration likelihood and prior over gRPC so an
// external sampler can drive the forward model. Requests and responses are
// google.protobuf.Struct messages, so the service needs no generated code.
package likesvc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "xuvcal.Likelihood"

// Method names.
const (
	MethodDescribe       = "Describe"
	MethodEvaluate       = "Evaluate"
	MethodLnPrior        = "LnPrior"
	MethodPriorTransform = "PriorTransform"
	MethodSamplePrior    = "SamplePrior"
)

// #region server-interface
// LikelihoodServer is the server API for the xuvcal.Likelihood service.
type LikelihoodServer interface {
	Describe(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LnPrior(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PriorTransform(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SamplePrior(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterLikelihoodServer registers srv with s.
func RegisterLikelihoodServer(s grpc.ServiceRegistrar, srv LikelihoodServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// #endregion server-interface

// #region service-desc
// ServiceDesc describes the xuvcal.Likelihood service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LikelihoodServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodDescribe, Handler: unary(MethodDescribe, LikelihoodServer.Describe)},
		{MethodName: MethodEvaluate, Handler: unary(MethodEvaluate, LikelihoodServer.Evaluate)},
		{MethodName: MethodLnPrior, Handler: unary(MethodLnPrior, LikelihoodServer.LnPrior)},
		{MethodName: MethodPriorTransform, Handler: unary(MethodPriorTransform, LikelihoodServer.PriorTransform)},
		{MethodName: MethodSamplePrior, Handler: unary(MethodSamplePrior, LikelihoodServer.SamplePrior)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "xuvcal/likelihood",
}

type unaryCall func(LikelihoodServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodHandler {
	full := FullMethod(method)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LikelihoodServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(LikelihoodServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FullMethod returns the gRPC path of method.
func FullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", ServiceName, method)
}

// #endregion service-desc
