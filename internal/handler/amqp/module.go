package amqp

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"

	pubsubadapter "github.com/riverpatch/uistream/internal/adapter/pubsub"
	"github.com/riverpatch/uistream/internal/config"
)

// Module wires the AMQP action-ingress adapter, splitting fx.Provide
// (constructing the router) from fx.Invoke (starting it).
var Module = fx.Module(
	"amqp-ingress",
	fx.Provide(
		func(cfg *config.Config, logger *slog.Logger) *pubsubadapter.SubscriberProvider {
			return pubsubadapter.NewSubscriberProvider(cfg.AMQP.URI, watermill.NewSlogLogger(logger))
		},
		NewIngressHandler,
		func(logger *slog.Logger) (*message.Router, error) {
			return message.NewRouter(message.RouterConfig{}, watermill.NewSlogLogger(logger))
		},
	),

	fx.Invoke(func(
		lc fx.Lifecycle,
		cfg *config.Config,
		h *IngressHandler,
		router *message.Router,
		subProvider *pubsubadapter.SubscriberProvider,
		logger *slog.Logger,
	) error {
		if err := RegisterHandlers(router, subProvider, h, cfg.AMQP.Exchange, cfg.AMQP.Queue); err != nil {
			return err
		}

		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					if err := router.Run(context.Background()); err != nil {
						logger.Error("AMQP_ROUTER_FAILED", "err", err)
					}
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return router.Close()
			},
		})
		return nil
	}),
)
