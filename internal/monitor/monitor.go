package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// SnapshotSink receives every snapshot the watcher builds
type SnapshotSink interface {
	Submit(snapshot domain.Snapshot)
}

// MprisMonitor watches MPRIS players through bus signals. Every relevant
// signal triggers a full rebuild which is handed to the sink; deduplication
// and debouncing are the sink's job.
type MprisMonitor struct {
	logger  *zap.Logger
	client  bus.Client
	builder domain.SnapshotBuilder
	sink    SnapshotSink

	mu      sync.RWMutex
	state   domain.WatcherState
	cancel  context.CancelFunc
	signals chan *dbus.Signal
	wg      sync.WaitGroup // Tracks the watch loop
	done    chan struct{}  // Closed when the watch loop exits
}

// NewMprisMonitor creates a new MPRIS monitor instance
func NewMprisMonitor(logger *zap.Logger, client bus.Client, builder domain.SnapshotBuilder, sink SnapshotSink) *MprisMonitor {
	return &MprisMonitor{
		logger:  logger,
		client:  client,
		builder: builder,
		sink:    sink,
		state:   domain.WatcherIdle,
		done:    make(chan struct{}),
	}
}

// Start subscribes to player signals, submits an initial snapshot and runs
// the watch loop in the background. It returns once the subscription is in place.
func (m *MprisMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state != domain.WatcherIdle {
		state := m.state
		m.mu.Unlock()
		if state == domain.WatcherRunning {
			return nil
		}
		return fmt.Errorf("monitor cannot restart from state %s", state)
	}
	m.state = domain.WatcherRunning
	m.mu.Unlock()

	if err := m.subscribe(); err != nil {
		m.setState(domain.WatcherFailed)
		return err
	}

	signals := make(chan *dbus.Signal, 16)
	m.client.Signal(signals)

	// The loop must outlive the caller's start context
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Lock()
	m.cancel = cancel
	m.signals = signals
	m.mu.Unlock()

	m.logger.Info("MPRIS monitor started")

	// Give consumers the current state without waiting for an event
	if err := m.refresh(loopCtx); err != nil && errors.Is(err, domain.ErrConnection) {
		cancel()
		m.client.RemoveSignal(signals)
		m.setState(domain.WatcherFailed)
		return err
	}

	m.wg.Add(1)
	go m.monitorSignals(loopCtx, signals)

	return nil
}

// subscribe adds the match rules for property changes and player lifecycle
func (m *MprisMonitor) subscribe() error {
	if err := m.client.AddMatchSignal(
		dbus.WithMatchObjectPath(bus.MprisPath),
		dbus.WithMatchInterface(bus.DBusPropIface),
		dbus.WithMatchMember(bus.PropertiesChangedMember),
	); err != nil {
		m.logger.Error("Failed to add match signal", zap.Error(err))
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	// Players appearing or disappearing change the snapshot too
	if err := m.client.AddMatchSignal(
		dbus.WithMatchInterface(bus.DBusInterface),
		dbus.WithMatchMember(bus.NameOwnerChangedMember),
		dbus.WithMatchArg0Namespace(bus.MprisMarker),
	); err != nil {
		m.logger.Warn("Failed to add NameOwnerChanged match signal", zap.Error(err))
	}

	return nil
}

// Stop gracefully stops the monitor
func (m *MprisMonitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	cancel := m.cancel
	signals := m.signals
	m.cancel = nil
	m.signals = nil
	if m.state == domain.WatcherRunning {
		m.state = domain.WatcherStopped
	}
	m.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.client.RemoveSignal(signals)
	m.logger.Info("MPRIS monitor shutdown complete")
	return nil
}

// Done is closed once the watch loop has exited, either after Stop or
// because the connection was lost
func (m *MprisMonitor) Done() <-chan struct{} {
	return m.done
}

// State reports the current lifecycle state
func (m *MprisMonitor) State() domain.WatcherState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *MprisMonitor) setState(state domain.WatcherState) {
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}

// monitorSignals listens for signals and rebuilds on each relevant one
func (m *MprisMonitor) monitorSignals(ctx context.Context, signals <-chan *dbus.Signal) {
	defer m.wg.Done()
	defer close(m.done)

	m.logger.Debug("Signal monitoring goroutine started")

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("Signal monitoring goroutine stopped")
			return
		case sig, ok := <-signals:
			if !ok {
				m.logger.Error("Bus connection lost, monitor stopped")
				m.setState(domain.WatcherFailed)
				return
			}
			if !isPlayerSignal(sig) {
				continue
			}
			m.logger.Debug("Received player signal",
				zap.String("signal", sig.Name),
				zap.String("sender", sig.Sender))

			if err := m.refresh(ctx); err != nil && errors.Is(err, domain.ErrConnection) {
				m.setState(domain.WatcherFailed)
				return
			}
		}
	}
}

// refresh rebuilds the snapshot and submits it. Errors are logged; the
// caller only needs them to detect a lost connection.
func (m *MprisMonitor) refresh(ctx context.Context) error {
	snapshot, err := m.builder.Build(ctx)
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Error("Failed to build snapshot", zap.Error(err))
		}
		return err
	}
	m.sink.Submit(snapshot)
	return nil
}

// isPlayerSignal filters out signals that cannot change a snapshot
func isPlayerSignal(sig *dbus.Signal) bool {
	if sig == nil || len(sig.Body) == 0 {
		return false
	}

	switch sig.Name {
	case bus.PropertiesChangedSignal:
		iface, ok := sig.Body[0].(string)
		return ok && strings.HasPrefix(iface, bus.MprisMarker)
	case bus.NameOwnerChangedSignal:
		name, ok := sig.Body[0].(string)
		return ok && strings.Contains(name, bus.MprisMarker)
	default:
		return false
	}
}
