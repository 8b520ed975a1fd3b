package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// blur.ParamService exchanges well-known types only, so no generated
// message code is needed.
//
//	service ParamService {
//	  rpc GetParams(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc SetParams(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc Stats(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc Shutdown(google.protobuf.Empty) returns (google.protobuf.Empty);
//	}
const (
	ParamService_GetParams_FullMethodName = "/blur.ParamService/GetParams"
	ParamService_SetParams_FullMethodName = "/blur.ParamService/SetParams"
	ParamService_Stats_FullMethodName     = "/blur.ParamService/Stats"
	ParamService_Shutdown_FullMethodName  = "/blur.ParamService/Shutdown"
)

type ParamServiceClient interface {
	GetParams(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetParams(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Stats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type paramServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewParamServiceClient(cc grpc.ClientConnInterface) ParamServiceClient {
	return &paramServiceClient{cc}
}

func (c *paramServiceClient) GetParams(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ParamService_GetParams_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paramServiceClient) SetParams(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ParamService_SetParams_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paramServiceClient) Stats(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ParamService_Stats_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *paramServiceClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, ParamService_Shutdown_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type ParamServiceServer interface {
	GetParams(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetParams(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func RegisterParamServiceServer(s grpc.ServiceRegistrar, srv ParamServiceServer) {
	s.RegisterService(&ParamService_ServiceDesc, srv)
}

func unaryHandler[In any](method string, call func(ParamServiceServer, context.Context, *In) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(In)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ParamServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ParamServiceServer), ctx, req.(*In))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ParamService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "blur.ParamService",
	HandlerType: (*ParamServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetParams",
			Handler: unaryHandler(ParamService_GetParams_FullMethodName, func(s ParamServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.GetParams(ctx, in)
			}),
		},
		{
			MethodName: "SetParams",
			Handler: unaryHandler(ParamService_SetParams_FullMethodName, func(s ParamServiceServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.SetParams(ctx, in)
			}),
		},
		{
			MethodName: "Stats",
			Handler: unaryHandler(ParamService_Stats_FullMethodName, func(s ParamServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Stats(ctx, in)
			}),
		},
		{
			MethodName: "Shutdown",
			Handler: unaryHandler(ParamService_Shutdown_FullMethodName, func(s ParamServiceServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Shutdown(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "blur.proto",
}
