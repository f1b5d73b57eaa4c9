package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/config"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/genricoloni/mediaplayer/internal/engine"
	"github.com/genricoloni/mediaplayer/internal/notifier"
	"github.com/genricoloni/mediaplayer/internal/publish"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const stopTimeout = 5 * time.Second

// AppOptions is the dependency graph of the watch daemon. It expects an
// *config.AppConfig to be supplied.
var AppOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	// Provide dependencies
	fx.Provide(
		newLogger,
		newBusClient,
		newEngine,
		publish.NewHub,
		newServer,
		newAdvertiser,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

func newBusClient(cfg *config.AppConfig) (bus.Client, error) {
	client, err := bus.NewSessionClient(cfg.BusTimeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func newServer(logger *zap.Logger, hub *publish.Hub, cfg *config.AppConfig) *publish.Server {
	return publish.NewServer(logger, hub, cfg.Serve.Addr)
}

func newAdvertiser(logger *zap.Logger, cfg *config.AppConfig) *publish.Advertiser {
	return publish.NewAdvertiser(logger, cfg.Zeroconf.Instance)
}

// runWatch runs the watch daemon until interrupted or the bus connection is lost
func runWatch(cfg *config.AppConfig) error {
	app := fx.New(
		fx.Supply(cfg),
		AppOptions,
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	exitCode := 0
	select {
	case <-ctx.Done():
	case sig := <-app.Wait():
		exitCode = sig.ExitCode
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop: %w", err)
	}

	if exitCode != 0 {
		return fmt.Errorf("watch ended: %w", domain.ErrConnection)
	}
	return nil
}

type hookParams struct {
	fx.In

	Lifecycle  fx.Lifecycle
	Shutdowner fx.Shutdowner
	Logger     *zap.Logger
	Config     *config.AppConfig
	Engine     *engine.Engine
	Hub        *publish.Hub
	Server     *publish.Server
	Advertiser *publish.Advertiser
}

// registerHooks sets up application lifecycle hooks
func registerHooks(p hookParams) {
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return startDaemon(ctx, p)
		},
		OnStop: func(ctx context.Context) error {
			notifySystemd(p.Logger, daemon.SdNotifyStopping)
			p.Logger.Info("Shutting down")
			return releaseDaemon(ctx, p)
		},
	})
}

// startDaemon serves, advertises and starts watching. fx skips OnStop of a
// hook whose OnStart failed, so a failure releases whatever already started.
func startDaemon(ctx context.Context, p hookParams) (err error) {
	logger := p.Logger
	defer func() {
		if err != nil {
			err = multierr.Append(err, releaseDaemon(ctx, p))
		}
	}()

	if p.Config.Serve.Enabled {
		if err := p.Server.Start(ctx); err != nil {
			return err
		}
		if p.Config.Zeroconf.Enabled {
			if err := p.Advertiser.Start(p.Server.Port()); err != nil {
				logger.Warn("mDNS advertisement unavailable", zap.Error(err))
			}
		}
	}

	if err := p.Engine.Watch(ctx, snapshotCallback(logger, p.Hub)); err != nil {
		return err
	}

	go superviseWatch(logger, p.Engine, p.Shutdowner)

	notifySystemd(logger, daemon.SdNotifyReady)
	logger.Info("mediaplayer daemon started")
	return nil
}

// releaseDaemon stops advertising and serving, then closes the engine
func releaseDaemon(ctx context.Context, p hookParams) error {
	p.Advertiser.Stop()
	if err := p.Server.Stop(ctx); err != nil {
		p.Logger.Warn("Failed to stop WebSocket server", zap.Error(err))
	}
	return p.Engine.Close()
}

// superviseWatch shuts the application down when watching fails
func superviseWatch(logger *zap.Logger, eng *engine.Engine, shutdowner fx.Shutdowner) {
	done := eng.Done()
	if done == nil {
		return
	}
	<-done

	if eng.State() == domain.WatcherFailed {
		logger.Error("Watcher failed, shutting down")
		if err := shutdowner.Shutdown(fx.ExitCode(1)); err != nil {
			logger.Error("Failed to request shutdown", zap.Error(err))
		}
	}
}

// snapshotCallback logs every delivered snapshot and hands it to pub
func snapshotCallback(logger *zap.Logger, pub domain.Publisher) notifier.Callback {
	return func(snapshot domain.Snapshot) {
		logSnapshot(logger, snapshot)
		pub.Publish(snapshot)
	}
}

func logSnapshot(logger *zap.Logger, snapshot domain.Snapshot) {
	if active, ok := snapshot.Active(); ok {
		logger.Info("Now playing",
			zap.String("player", active.BusURI),
			zap.String("title", active.Title),
			zap.String("artist", active.Artist),
			zap.String("status", string(active.Status)),
			zap.Int("players", len(snapshot)))
		return
	}
	logger.Info("No active player")
}

func notifySystemd(logger *zap.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("Failed to notify systemd", zap.String("state", state), zap.Error(err))
		return
	}
	if sent {
		logger.Debug("Notified systemd", zap.String("state", state))
	}
}
