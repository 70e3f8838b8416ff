// Package grpc builds the gRPC server surface: health checking and
// reflection today, instrumented by the same interceptor chain a future
// domain streaming RPC would run under. No domain-specific streaming
// service is defined yet, so the server exposes only the two standard
// services plus the instrumentation scaffolding.
package grpc

import (
	"context"
	"log/slog"
	"net"

	recovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	grpcmw "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/reflection"

	"github.com/riverpatch/uistream/infra/server/grpc/interceptors"
)

// Server wraps the grpc.Server and the health reporting it exposes.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// New builds a grpc.Server with a recovery interceptor, a structured
// logging interceptor and the session-scope interceptor chained around
// every stream, an otelgrpc stats handler for tracing, and health +
// reflection registered.
func New(logger *slog.Logger) *Server {
	logAdapter := grpcmw.LoggerFunc(func(ctx context.Context, lvl grpcmw.Level, msg string, fields ...any) {
		logger.Log(ctx, slogLevel(lvl), msg, fields...)
	})

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recovery.WithRecoveryHandlerContext(
				func(ctx context.Context, p any) error {
					logger.Error("GRPC_PANIC_RECOVERED", "panic", p)
					return nil
				},
			)),
			grpcmw.StreamServerInterceptor(logAdapter),
			interceptors.NewSessionScopeInterceptor(),
		),
	)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(srv)

	return &Server{grpc: srv, health: healthSrv, logger: logger}
}

// Serve blocks accepting connections on lis.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpc.Serve(lis)
}

// GracefulStop drains in-flight RPCs before returning.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}

func slogLevel(lvl grpcmw.Level) slog.Level {
	switch lvl {
	case grpcmw.LevelDebug:
		return slog.LevelDebug
	case grpcmw.LevelWarn:
		return slog.LevelWarn
	case grpcmw.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
