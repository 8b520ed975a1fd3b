package proto

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"BlurServer/delivery"
	"BlurServer/engine"
	"BlurServer/logger"
	iface "BlurServer/interface"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type Server struct {
	Engine   *engine.Engine
	Driver   *delivery.Driver
	Requests iface.RequestCounter

	// CloseChannel receives once when a client asks the server to stop.
	CloseChannel chan struct{}
	closeOnce    sync.Once
}

func NewServer(e *engine.Engine, d *delivery.Driver, rc iface.RequestCounter) *Server {
	return &Server{Engine: e, Driver: d, Requests: rc, CloseChannel: make(chan struct{})}
}

func (s *Server) count() {
	if s.Requests != nil {
		s.Requests.Request("grpc")
	}
}

func (s *Server) GetParams(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.count()
	return toStruct(s.Engine.Params().Get())
}

// SetParams merges the given fields into the current parameters. Unknown
// fields are ignored; malformed values fail the whole update.
func (s *Server) SetParams(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.count()
	fields := req.AsMap()
	merged, err := s.Engine.Params().Update(func(cur engine.ParamValues) (engine.ParamValues, error) {
		return engine.MergeParams(cur, fields)
	})
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	logger.Log().Info("parameters updated",
		zap.String(logger.FieldPort, s.Engine.PortName()),
		zap.Int(logger.FieldKernelWidth, merged.KernelWidth),
		zap.Int(logger.FieldKernelHeight, merged.KernelHeight),
		zap.Stringer(logger.FieldMode, merged.Mode),
		zap.Stringer("data_type", merged.OutputType))
	return toStruct(merged)
}

func (s *Server) Stats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	s.count()
	return toStruct(delivery.BuildReport(s.Engine, s.Driver))
}

func (s *Server) Shutdown(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.count()
	s.closeOnce.Do(func() {
		logger.Log().Warn("Shutdown requested over gRPC")
		close(s.CloseChannel)
	})
	return &emptypb.Empty{}, nil
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return st, nil
}

// StartGRPCServer listens on port and serves srv in the background.
func StartGRPCServer(port int, srv *Server) (*grpc.Server, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	s := grpc.NewServer()
	RegisterParamServiceServer(s, srv)
	go func() {
		logger.Log().Info("gRPC server listening", zap.String("addr", addr))
		if err := s.Serve(lis); err != nil {
			logger.Log().Error("gRPC server stopped", zap.Error(err))
		}
	}()
	return s, nil
}
