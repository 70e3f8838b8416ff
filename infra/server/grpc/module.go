package grpc

import (
	"context"
	"log/slog"
	"net"

	"go.uber.org/fx"

	"github.com/riverpatch/uistream/internal/config"
)

// Module wires the gRPC server alongside the fx application lifecycle,
// mirroring internal/handler/http's listener lifecycle-hook pattern.
var Module = fx.Module(
	"grpc-transport",
	fx.Provide(New),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil {
					logger.Error("GRPC_SERVER_FAILED", "err", err)
				}
			}()
			logger.Info("GRPC_LISTENING", "addr", cfg.GRPCAddr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.GracefulStop()
			return nil
		},
	})
}
