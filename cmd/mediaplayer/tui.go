package main

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/config"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/genricoloni/mediaplayer/internal/notifier"
	"github.com/genricoloni/mediaplayer/internal/tui"
	"go.uber.org/zap"
)

// watchEngine is the part of the engine the terminal UI drives
type watchEngine interface {
	tui.Controller
	Watch(ctx context.Context, callback notifier.Callback) error
	Done() <-chan struct{}
	State() domain.WatcherState
}

// runTUI shows the now-playing view until the user quits or ctx is cancelled
func runTUI(ctx context.Context, cfg *config.AppConfig) error {
	client, err := bus.NewSessionClient(cfg.BusTimeout)
	if err != nil {
		return err
	}

	// Log output would corrupt the alternate screen
	eng := newEngine(zap.NewNop(), client, cfg)
	defer eng.Close() //nolint:errcheck

	return runProgram(ctx, eng, tui.New(eng), tea.WithAltScreen())
}

// runProgram runs model while eng feeds it snapshots. Cancelling ctx ends
// the program without an error.
func runProgram(ctx context.Context, eng watchEngine, model tea.Model, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program := tea.NewProgram(model, append(opts, tea.WithContext(ctx))...)

	// The callback may run before the program reads messages, so it must not block
	relay := newSnapshotRelay()
	if err := eng.Watch(ctx, relay.Offer); err != nil {
		return err
	}
	go relay.Forward(ctx, program.Send)

	go func() {
		select {
		case <-eng.Done():
			if eng.State() == domain.WatcherFailed {
				program.Send(tui.ErrorMsg{Err: domain.ErrConnection})
			}
		case <-ctx.Done():
		}
	}()

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// snapshotRelay hands snapshots from the watcher to the program. It holds
// at most one snapshot and a newer one replaces an unread one.
type snapshotRelay struct {
	ch chan domain.Snapshot
}

func newSnapshotRelay() *snapshotRelay {
	return &snapshotRelay{ch: make(chan domain.Snapshot, 1)}
}

// Offer stores snapshot without blocking. Callbacks are serialized by the
// notifier, so there is a single producer.
func (r *snapshotRelay) Offer(snapshot domain.Snapshot) {
	for {
		select {
		case r.ch <- snapshot:
			return
		default:
		}
		select {
		case <-r.ch:
		default:
		}
	}
}

// Forward sends every relayed snapshot until ctx is done
func (r *snapshotRelay) Forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case snapshot := <-r.ch:
			send(tui.SnapshotMsg(snapshot))
		}
	}
}
