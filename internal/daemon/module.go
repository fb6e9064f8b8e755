package daemon

import (
	"context"
	"path/filepath"

	"github.com/matheus3301/portalchat/internal/api"
	"github.com/matheus3301/portalchat/internal/bus"
	"github.com/matheus3301/portalchat/internal/config"
	"github.com/matheus3301/portalchat/internal/lock"
	"github.com/matheus3301/portalchat/internal/logging"
	"github.com/matheus3301/portalchat/internal/messaging"
	"github.com/matheus3301/portalchat/internal/metrics"
	"github.com/matheus3301/portalchat/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Config  *config.Config
	// Dir overrides the profile directory (lock, database, logs). Empty = default.
	Dir string
	// SocketPath overrides the socket. Empty = config, then profile default.
	SocketPath string
	// Logger replaces the file logger, mainly for tests.
	Logger *zap.Logger
}

func (p Params) dir() string {
	if p.Dir != "" {
		return p.Dir
	}
	return config.Dir(p.Profile)
}

func (p Params) socket() string {
	if p.SocketPath != "" {
		return p.SocketPath
	}
	if p.Dir != "" && p.Config.Daemon.Socket == "" {
		return filepath.Join(p.Dir, "daemon.sock")
	}
	return p.Config.SocketFor(p.Profile)
}

func (p Params) dbPath() string {
	if p.Dir != "" && p.Config.Store.Path == "" {
		return filepath.Join(p.Dir, "portalchat.db")
	}
	return p.Config.DBFor(p.Profile)
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	if p.Config == nil {
		p.Config = config.Default()
	}
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideStateMachine,
			provideRegistry,
			provideMetrics,
			provideLock,
			provideRepository,
			provideEngine,
			provideLimiter,
			provideMessagingService,
			NewServer,
			NewMetricsServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.Logger != nil {
		return p.Logger, nil
	}
	return logging.New(filepath.Join(p.dir(), "logs", "portalchatd.log"), p.Profile, p.Config.Log.Level)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.Metrics {
	return metrics.New(reg)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(p.dir())
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired", zap.String("path", l.Path()))
	return l, nil
}

func provideEngine(repo *Repository, b *bus.Bus, m *metrics.Metrics, p Params, logger *zap.Logger) *messaging.Engine {
	ec := p.Config.Engine
	cfg := messaging.Config{
		ReplyDelay:      ec.ReplyDelay.Duration,
		SnippetLength:   ec.SnippetLength,
		ReplyTemplate:   ec.ReplyTemplate,
		SimulateReplies: ec.SimulateReplies,
	}
	return messaging.New(repo.Store, b, logger.Named("messaging"), cfg, messaging.WithMetrics(m))
}

func provideLimiter(p Params) *api.Limiter {
	return api.NewLimiter(p.Config.Limits.SendRPS, p.Config.Limits.SendBurst)
}

func provideMessagingService(p Params, engine *messaging.Engine, b *bus.Bus, machine *status.Machine, repo *Repository, limiter *api.Limiter, logger *zap.Logger) *api.MessagingService {
	return api.NewMessagingService(engine, b, api.ServiceOptions{
		Profile:     p.Profile,
		StoreDriver: repo.Driver,
		Machine:     machine,
		Counter:     repo.Counter,
		Limiter:     limiter,
		Logger:      logger.Named("api"),
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, ms *MetricsServer, lk *lock.Lock, repo *Repository, engine *messaging.Engine, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("gRPC server error", zap.Error(err))
					_ = machine.Transition(status.Error)
				}
			}()
			ms.Start()

			if err := machine.Transition(status.Ready); err != nil {
				return err
			}
			logger.Info("daemon ready", zap.String("store", repo.Driver))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			_ = machine.Transition(status.Draining)
			srv.Stop(ctx)
			ms.Stop(ctx)
			_ = engine.Close()
			if err := repo.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			_ = machine.Transition(status.Stopped)
			logger.Info("daemon stopped")
			return nil
		},
	})
}
