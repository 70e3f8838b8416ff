package cmd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.uber.org/fx"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	grpcsrv "github.com/riverpatch/uistream/infra/server/grpc"
	"github.com/riverpatch/uistream/internal/composer"
	"github.com/riverpatch/uistream/internal/config"
	"github.com/riverpatch/uistream/internal/generator"
	amqphandler "github.com/riverpatch/uistream/internal/handler/amqp"
	httphandler "github.com/riverpatch/uistream/internal/handler/http"
	"github.com/riverpatch/uistream/internal/processor"
	"github.com/riverpatch/uistream/internal/registry"
	"github.com/riverpatch/uistream/internal/service"
	"github.com/riverpatch/uistream/internal/store"
	"github.com/riverpatch/uistream/internal/telemetry"
)

// NewApp wires every module into one fx.App: a flat fx.New call listing
// the config/logger/store/registry/composer providers, followed by one
// *.Module per transport/ingress concern.
func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			provideTracerProvider,
			provideEventLog,
			provideGenerator,
			provideRegistry,
			composer.New,
		),
		service.Module,
		httphandler.Module,
		amqphandler.Module,
		grpcsrv.Module,
		// Forces eager construction of the TracerProvider even though
		// nothing else in the graph depends on it directly.
		fx.Invoke(func(*sdktrace.TracerProvider) {}),
		fx.Invoke(registerCleanupSweep),
	)
}

// ProvideLogger builds the process-wide structured logger: a JSON handler
// to stdout fanned out alongside the otelslog bridge, with its level gated
// by the GENUI_DEBUG environment variable.
func ProvideLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("GENUI_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return telemetry.NewLogger(ServiceName, level)
}

func provideTracerProvider(lc fx.Lifecycle) *sdktrace.TracerProvider {
	tp := telemetry.NewTracerProvider()
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tp.Shutdown(ctx)
		},
	})
	return tp
}

func provideEventLog(cfg *config.Config, lc fx.Lifecycle) (store.EventLog, error) {
	log, err := store.NewBoltEventLog(cfg.BoltPath, cfg.FullEventLRU)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return log.Close()
		},
	})
	return log, nil
}

// provideGenerator wraps the mock generator (no real language-model
// integration is in scope for this deployment) in the circuit breaker the
// Processor expects.
func provideGenerator() generator.Generator {
	return generator.NewBreakerGenerator(generator.NewMockGenerator(), "generator")
}

func provideRegistry(cfg *config.Config, log store.EventLog, gen generator.Generator, logger *slog.Logger, lc fx.Lifecycle) *registry.Registry {
	reg := registry.New(log, gen,
		registry.WithIdleTTL(cfg.IdleTTL),
		registry.WithSweepInterval(cfg.SweepInterval),
		registry.WithLogger(logger),
		registry.WithProcessorOptions(
			processor.WithMaxBatchSize(cfg.MaxBatchSize),
			processor.WithMaxAttempts(cfg.MaxAttempts),
			processor.WithDefaultModel(cfg.DefaultModel),
			processor.WithSubscriberBuffer(cfg.SubscriberBuffer),
			processor.WithLogger(logger),
		),
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			reg.Shutdown()
			return nil
		},
	})
	return reg
}

// registerCleanupSweep runs the event log's age-based cleanup on a fixed
// interval for the lifetime of the process, the durable-log analogue of
// the Registry's idle-processor janitor.
func registerCleanupSweep(lc fx.Lifecycle, cfg *config.Config, log store.EventLog, logger *slog.Logger) {
	stop := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(cfg.CleanupMaxAge / 24)
				defer ticker.Stop()
				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						n, err := log.Cleanup(time.Now().Add(-cfg.CleanupMaxAge))
						if err != nil {
							logger.Error("EVENT_LOG_CLEANUP_FAILED", "err", err)
							continue
						}
						if n > 0 {
							logger.Info("EVENT_LOG_CLEANUP", "rows_removed", n)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return nil
		},
	})
}
