package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/controller"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/genricoloni/mediaplayer/internal/monitor"
	"github.com/genricoloni/mediaplayer/internal/notifier"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrAlreadyWatching is returned when Watch is called twice
var ErrAlreadyWatching = errors.New("engine is already watching")

// Options tunes the engine
type Options struct {
	// Debounce coalesces bursts of changes before the callback runs
	Debounce time.Duration
	// ControlTimeout bounds each playback command
	ControlTimeout time.Duration
}

// Engine owns the bus connection and ties together discovery, change
// notification and playback control
type Engine struct {
	logger     *zap.Logger
	client     bus.Client
	opts       Options
	builder    *monitor.Builder
	controller *controller.Controller

	mu       sync.Mutex
	notifier *notifier.Notifier
	monitor  domain.Monitor
	closed   bool
}

// NewEngine creates an engine on an open client. The engine takes
// ownership of the client and closes it in Close.
func NewEngine(logger *zap.Logger, client bus.Client, opts Options) *Engine {
	builder := monitor.NewBuilder(logger, client)
	return &Engine{
		logger:     logger,
		client:     client,
		opts:       opts,
		builder:    builder,
		controller: controller.New(logger, client, builder, opts.ControlTimeout),
	}
}

// Snapshot builds the current snapshot once and returns it
func (e *Engine) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return e.builder.Build(ctx)
}

// Latest returns the most recently built snapshot
func (e *Engine) Latest() domain.Snapshot {
	return e.builder.Latest()
}

// Watch starts monitoring in the background. callback runs on the watcher
// goroutine for every distinct snapshot.
func (e *Engine) Watch(ctx context.Context, callback notifier.Callback) error {
	e.mu.Lock()
	if e.monitor != nil {
		e.mu.Unlock()
		return ErrAlreadyWatching
	}
	n := notifier.New(e.logger, e.opts.Debounce, callback)
	mon := monitor.NewMprisMonitor(e.logger, e.client, e.builder, n)
	e.notifier = n
	e.monitor = mon
	e.mu.Unlock()

	e.logger.Info("Engine starting...", zap.Duration("debounce", e.opts.Debounce))
	return mon.Start(ctx)
}

// State reports the watcher state, or idle when not watching
func (e *Engine) State() domain.WatcherState {
	e.mu.Lock()
	mon := e.monitor
	e.mu.Unlock()
	if mon == nil {
		return domain.WatcherIdle
	}
	return mon.State()
}

// Done is closed when watching ends. It returns nil when not watching.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.monitor == nil {
		return nil
	}
	return e.monitor.Done()
}

// Control runs a playback action, see controller.Controller.Control
func (e *Engine) Control(ctx context.Context, action domain.Action, player string) error {
	return e.controller.Control(ctx, action, player)
}

// SetVolume sets the volume of a player, see controller.Controller.SetVolume
func (e *Engine) SetVolume(ctx context.Context, level float64, player string) error {
	return e.controller.SetVolume(ctx, level, player)
}

// SetPosition seeks a player, see controller.Controller.SetPosition
func (e *Engine) SetPosition(ctx context.Context, seconds int64, player string) error {
	return e.controller.SetPosition(ctx, seconds, player)
}

// Stop stops watching and cancels any pending delivery. The connection stays open.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	mon, n := e.monitor, e.notifier
	e.mu.Unlock()

	if mon == nil {
		return nil
	}

	e.logger.Info("Engine stopping...")
	err := mon.Stop(ctx)
	n.Stop()
	return err
}

// Close stops watching and closes the bus connection
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	return multierr.Combine(
		e.Stop(ctx),
		e.client.Close(),
	)
}
