// Package control exposes a running pipeline over gRPC.
//
// The service is declared by hand and carries protobuf well-known types
// only, so no generated code is needed on either side.
package control

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"multipresence/internal/pipeline"
	"multipresence/internal/presence"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "multipresence.v1.Presence"

const (
	methodPing         = "/" + ServiceName + "/Ping"
	methodStatus       = "/" + ServiceName + "/Status"
	methodSetMessage   = "/" + ServiceName + "/SetMessage"
	methodReconnect    = "/" + ServiceName + "/Reconnect"
	methodReloadConfig = "/" + ServiceName + "/ReloadConfig"
)

// Backend is what the service needs from the daemon.
type Backend interface {
	Preview() pipeline.Preview
	SetCustomMessage(msg string)
	Reconnect(ctx context.Context) error
	ReloadConfig(ctx context.Context) error
}

// PresenceServer is the server side of the service.
type PresenceServer interface {
	Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SetMessage(context.Context, *wrapperspb.StringValue) (*emptypb.Empty, error)
	Reconnect(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	ReloadConfig(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

// Service implements PresenceServer on top of a Backend and keeps the
// standard health service in step with the presence connection.
type Service struct {
	backend Backend
	health  *health.Server
	logger  *slog.Logger
}

var _ PresenceServer = (*Service)(nil)

// NewService returns a Service for backend.
func NewService(backend Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend: backend,
		health:  health.NewServer(),
		logger:  logger,
	}
}

// Register installs the presence and health services on srv.
func (s *Service) Register(srv *grpc.Server) {
	srv.RegisterService(&serviceDesc, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.syncHealth()
}

// WatchHealth refreshes the health status every interval until ctx is done.
func (s *Service) WatchHealth(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			s.syncHealth()
		}
	}
}

func (s *Service) syncHealth() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.backend.Preview().Status.State == presence.Connected {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// Ping answers "pong" so clients can probe the socket.
func (s *Service) Ping(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error) {
	return wrapperspb.String("pong"), nil
}

// Status returns the redacted presence preview flattened into a Struct.
func (s *Service) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	out, err := NewReport(s.backend.Preview()).toStruct()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode status: %v", err)
	}
	return out, nil
}

// SetMessage replaces the custom message; an empty value clears it.
func (s *Service) SetMessage(_ context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	s.backend.SetCustomMessage(req.GetValue())
	s.logger.Info("custom message updated", "empty", req.GetValue() == "")
	return &emptypb.Empty{}, nil
}

// Reconnect always answers with the resulting status line; a failed
// connection is reported in the text, not as an RPC error.
func (s *Service) Reconnect(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.StringValue, error) {
	if err := s.backend.Reconnect(ctx); err != nil {
		s.logger.Warn("reconnect requested over control socket failed", "error", err)
	}
	s.syncHealth()
	return wrapperspb.String(s.backend.Preview().Status.Message), nil
}

// ReloadConfig re-reads the config file. A broken file is FailedPrecondition.
func (s *Service) ReloadConfig(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.backend.ReloadConfig(ctx); err != nil {
		return nil, status.Errorf(codes.FailedPrecondition, "reload config: %v", err)
	}
	return &emptypb.Empty{}, nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PresenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unary(methodPing, PresenceServer.Ping)},
		{MethodName: "Status", Handler: unary(methodStatus, PresenceServer.Status)},
		{MethodName: "SetMessage", Handler: unary(methodSetMessage, PresenceServer.SetMessage)},
		{MethodName: "Reconnect", Handler: unary(methodReconnect, PresenceServer.Reconnect)},
		{MethodName: "ReloadConfig", Handler: unary(methodReloadConfig, PresenceServer.ReloadConfig)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "multipresence/v1/presence.proto",
}

// unary builds a grpc.MethodHandler the way protoc-gen-go-grpc does for
// each method, parameterised over the request and response types.
func unary[Req any, Resp any, PReq interface {
	*Req
}](fullMethod string, call func(PresenceServer, context.Context, PReq) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := PReq(new(Req))
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PresenceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PresenceServer), ctx, req.(PReq))
		}
		return interceptor(ctx, in, info, handler)
	}
}
