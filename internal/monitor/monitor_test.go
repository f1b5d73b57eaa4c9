package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// fakeBuilder returns a snapshot titled after the build count, or a queued error
type fakeBuilder struct {
	mu     sync.Mutex
	builds int
	errs   []error
}

func (b *fakeBuilder) Build(ctx context.Context) (domain.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.builds++
	if len(b.errs) > 0 {
		err := b.errs[0]
		b.errs = b.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return domain.Snapshot{{
		BusURI: "org.mpris.MediaPlayer2.test",
		Title:  fmt.Sprintf("build-%d", b.builds),
		Status: domain.StatusPlaying,
	}}, nil
}

func (b *fakeBuilder) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.builds
}

// chanSink forwards submitted snapshots to a channel
type chanSink struct {
	ch chan domain.Snapshot
}

func newChanSink() *chanSink {
	return &chanSink{ch: make(chan domain.Snapshot, 16)}
}

func (s *chanSink) Submit(snapshot domain.Snapshot) {
	s.ch <- snapshot
}

func (s *chanSink) next(t *testing.T) domain.Snapshot {
	t.Helper()
	select {
	case snapshot := <-s.ch:
		return snapshot
	case <-time.After(time.Second):
		t.Fatal("Timeout: snapshot was not submitted")
		return nil
	}
}

func (s *chanSink) expectNone(t *testing.T) {
	t.Helper()
	select {
	case snapshot := <-s.ch:
		t.Fatalf("Unexpected snapshot submitted: %+v", snapshot)
	case <-time.After(50 * time.Millisecond):
	}
}

func propertiesChanged(iface string) *dbus.Signal {
	return &dbus.Signal{
		Sender: ":1.100",
		Path:   bus.MprisPath,
		Name:   bus.PropertiesChangedSignal,
		Body: []any{
			iface,
			map[string]dbus.Variant{"PlaybackStatus": dbus.MakeVariant("Playing")},
			[]string{},
		},
	}
}

func nameOwnerChanged(name string) *dbus.Signal {
	return &dbus.Signal{
		Sender: bus.DBusInterface,
		Path:   "/org/freedesktop/DBus",
		Name:   bus.NameOwnerChangedSignal,
		Body:   []any{name, "", ":1.42"},
	}
}

// TestIsPlayerSignal consolidates relevant and ignored signals into a table test.
func TestIsPlayerSignal(t *testing.T) {
	tests := []struct {
		name     string
		signal   *dbus.Signal
		expected bool
	}{
		{
			name:     "Player Properties Changed",
			signal:   propertiesChanged(bus.MprisPlayerIface),
			expected: true,
		},
		{
			name:     "Root Interface Properties Changed",
			signal:   propertiesChanged(bus.MprisMarker),
			expected: true,
		},
		{
			name:     "Unrelated Properties Changed",
			signal:   propertiesChanged("org.freedesktop.NetworkManager"),
			expected: false,
		},
		{
			name:     "Player Appeared",
			signal:   nameOwnerChanged("org.mpris.MediaPlayer2.vlc"),
			expected: true,
		},
		{
			name:     "Unrelated Name Owner Changed",
			signal:   nameOwnerChanged("org.gnome.Shell"),
			expected: false,
		},
		{
			name:     "Wrong Signal Name",
			signal:   &dbus.Signal{Name: "org.freedesktop.DBus.SomeOtherSignal", Body: []any{bus.MprisPlayerIface}},
			expected: false,
		},
		{
			name:     "Empty Body",
			signal:   &dbus.Signal{Name: bus.PropertiesChangedSignal},
			expected: false,
		},
		{
			name:     "Interface Not A String",
			signal:   &dbus.Signal{Name: bus.PropertiesChangedSignal, Body: []any{12345}},
			expected: false,
		},
		{
			name:     "Nil Signal",
			signal:   nil,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPlayerSignal(tt.signal); got != tt.expected {
				t.Errorf("isPlayerSignal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestMprisMonitor_StateBeforeStart(t *testing.T) {
	mon := NewMprisMonitor(zap.NewNop(), nil, &fakeBuilder{}, newChanSink())

	if mon.State() != domain.WatcherIdle {
		t.Errorf("Expected idle, got %s", mon.State())
	}
	// Stop before Start is a no-op
	if err := mon.Stop(context.Background()); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if mon.State() != domain.WatcherIdle {
		t.Errorf("Expected idle after no-op stop, got %s", mon.State())
	}
}

func TestMprisMonitor_RefreshErrorIsLogged(t *testing.T) {
	builder := &fakeBuilder{errs: []error{fmt.Errorf("list: %w", domain.ErrTransport)}}
	sink := newChanSink()
	mon := NewMprisMonitor(zap.NewNop(), nil, builder, sink)

	err := mon.refresh(context.Background())
	if !errors.Is(err, domain.ErrTransport) {
		t.Errorf("Expected transport error, got %v", err)
	}
	sink.expectNone(t)

	if err := mon.refresh(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := sink.next(t); got[0].Title != "build-2" {
		t.Errorf("Unexpected snapshot %+v", got)
	}
}
