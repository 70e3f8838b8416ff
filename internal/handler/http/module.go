package http

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.uber.org/fx"

	"github.com/riverpatch/uistream/internal/config"
	"github.com/riverpatch/uistream/internal/handler/lp"
	"github.com/riverpatch/uistream/internal/handler/sse"
	"github.com/riverpatch/uistream/internal/handler/ws"
)

// Module wires the HTTP transport layer (SSE, WS, long-poll) and starts
// its listener alongside the fx application lifecycle.
var Module = fx.Module(
	"http-transport",
	fx.Provide(
		ws.NewWSHandler,
		lp.NewLPHandler,
		sse.NewSSEHandler,
		NewRouter,
	),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger, handler http.Handler) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP_SERVER_FAILED", "err", err)
				}
			}()
			logger.Info("HTTP_LISTENING", "addr", cfg.HTTPAddr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
