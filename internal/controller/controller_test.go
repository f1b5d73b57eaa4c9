package controller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/genricoloni/mediaplayer/internal/bus"
	"github.com/genricoloni/mediaplayer/internal/bus/mocks"
	"github.com/genricoloni/mediaplayer/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

const (
	playerA = "org.mpris.MediaPlayer2.A"
	playerB = "org.mpris.MediaPlayer2.B"
)

// staticSource serves a fixed snapshot
type staticSource domain.Snapshot

func (s staticSource) Latest() domain.Snapshot {
	return domain.Snapshot(s)
}

func twoPlayers() staticSource {
	return staticSource{
		{BusURI: playerA, Title: "Song1", Status: domain.StatusPlaying},
		{BusURI: playerB, Title: "Song2", Status: domain.StatusIdle},
	}
}

func TestController_Control(t *testing.T) {
	tests := []struct {
		name          string
		source        staticSource
		action        domain.Action
		player        string
		setupMock     func(*mocks.MockClient)
		expectedError error
	}{
		{
			name:   "Success - Default Player Is First Snapshot Entry",
			source: twoPlayers(),
			action: domain.ActionPause,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "Pause").
					Return(nil)
			},
		},
		{
			name:   "Success - Explicit Player",
			source: twoPlayers(),
			action: domain.ActionNext,
			player: playerB,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().CallMethod(gomock.Any(), playerB, bus.MprisPath, bus.MprisPlayerIface, "Next").
					Return(nil)
			},
		},
		{
			name:   "Success - Explicit Player With Empty Snapshot",
			source: staticSource{},
			action: domain.ActionPlay,
			player: playerB,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().CallMethod(gomock.Any(), playerB, bus.MprisPath, bus.MprisPlayerIface, "Play").
					Return(nil)
			},
		},
		{
			name:   "Timeout - Treated As Success",
			source: twoPlayers(),
			action: domain.ActionPlayPause,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "PlayPause").
					Return(fmt.Errorf("call: %w: %w", domain.ErrTransport, context.DeadlineExceeded))
			},
		},
		{
			name:          "Failure - Empty Snapshot",
			source:        staticSource{},
			action:        domain.ActionPause,
			setupMock:     func(m *mocks.MockClient) {},
			expectedError: domain.ErrNoPlayer,
		},
		{
			name:          "Failure - Unknown Action",
			source:        twoPlayers(),
			action:        domain.Action("Rewind"),
			setupMock:     func(m *mocks.MockClient) {},
			expectedError: domain.ErrInvalidArgument,
		},
		{
			name:   "Failure - Transport Error",
			source: twoPlayers(),
			action: domain.ActionStop,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "Stop").
					Return(fmt.Errorf("call: %w", domain.ErrTransport))
			},
			expectedError: domain.ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := mocks.NewMockClient(ctrl)
			tt.setupMock(m)

			c := New(zap.NewNop(), m, tt.source, 0)
			err := c.Control(context.Background(), tt.action, tt.player)

			if tt.expectedError == nil && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.expectedError != nil && !errors.Is(err, tt.expectedError) {
				t.Fatalf("Expected %v, got %v", tt.expectedError, err)
			}
		})
	}
}

func TestController_Control_AppliesTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	m := mocks.NewMockClient(ctrl)
	m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "Play").
		DoAndReturn(func(ctx context.Context, service string, path dbus.ObjectPath, iface, method string, args ...any) error {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("Expected the call context to carry a deadline")
			}
			return nil
		})

	c := New(zap.NewNop(), m, twoPlayers(), DefaultTimeout)
	if err := c.Control(context.Background(), domain.ActionPlay, ""); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func TestController_SetVolume(t *testing.T) {
	tests := []struct {
		name          string
		level         float64
		source        staticSource
		setupMock     func(*mocks.MockClient)
		expectedError error
	}{
		{
			name:   "Success - Mid Volume",
			level:  0.5,
			source: twoPlayers(),
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().SetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Volume", 0.5).Return(nil)
			},
		},
		{
			name:   "Success - Lower Bound",
			level:  0,
			source: twoPlayers(),
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().SetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Volume", 0.0).Return(nil)
			},
		},
		{
			name:   "Success - Upper Bound",
			level:  1,
			source: twoPlayers(),
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().SetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Volume", 1.0).Return(nil)
			},
		},
		{
			name:   "Timeout - Treated As Success",
			level:  0.3,
			source: twoPlayers(),
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().SetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Volume", 0.3).
					Return(context.DeadlineExceeded)
			},
		},
		{
			name:          "Invalid - Above One",
			level:         1.5,
			source:        twoPlayers(),
			setupMock:     func(m *mocks.MockClient) {},
			expectedError: domain.ErrInvalidArgument,
		},
		{
			name:          "Invalid - Negative",
			level:         -0.1,
			source:        twoPlayers(),
			setupMock:     func(m *mocks.MockClient) {},
			expectedError: domain.ErrInvalidArgument,
		},
		{
			name:          "Invalid - NaN",
			level:         math.NaN(),
			source:        twoPlayers(),
			setupMock:     func(m *mocks.MockClient) {},
			expectedError: domain.ErrInvalidArgument,
		},
		{
			name:          "Failure - No Player",
			level:         0.5,
			source:        staticSource{},
			setupMock:     func(m *mocks.MockClient) {},
			expectedError: domain.ErrNoPlayer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := mocks.NewMockClient(ctrl)
			tt.setupMock(m)

			c := New(zap.NewNop(), m, tt.source, 0)
			err := c.SetVolume(context.Background(), tt.level, "")

			if tt.expectedError == nil && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.expectedError != nil && !errors.Is(err, tt.expectedError) {
				t.Fatalf("Expected %v, got %v", tt.expectedError, err)
			}
		})
	}
}

func metadataWithTrack(id any) dbus.Variant {
	return dbus.MakeVariant(map[string]dbus.Variant{
		"mpris:trackid": dbus.MakeVariant(id),
		"xesam:title":   dbus.MakeVariant("Song1"),
	})
}

func TestController_SetPosition(t *testing.T) {
	tests := []struct {
		name          string
		seconds       int64
		setupMock     func(*mocks.MockClient)
		expectedError error
	}{
		{
			name:    "Success - Absolute With Track Id",
			seconds: 30,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Metadata").
					Return(metadataWithTrack(dbus.ObjectPath("/org/mpris/MediaPlayer2/Track/7")), nil)
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "SetPosition",
					dbus.ObjectPath("/org/mpris/MediaPlayer2/Track/7"), int64(30_000_000)).
					Return(nil)
			},
		},
		{
			name:    "Success - String Track Id",
			seconds: 1,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Metadata").
					Return(metadataWithTrack("/com/spotify/track/abc"), nil)
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "SetPosition",
					dbus.ObjectPath("/com/spotify/track/abc"), int64(1_000_000)).
					Return(nil)
			},
		},
		{
			name:    "Fallback - NoTrack Seeks Relative",
			seconds: 30,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Metadata").
					Return(metadataWithTrack(dbus.ObjectPath(bus.MprisNoTrack)), nil)
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Position").
					Return(dbus.MakeVariant(int64(10_000_000)), nil)
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "Seek",
					int64(20_000_000)).
					Return(nil)
			},
		},
		{
			name:    "Fallback - Missing Track Id And Position Seeks From Zero",
			seconds: 5,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Metadata").
					Return(dbus.MakeVariant(map[string]dbus.Variant{}), nil)
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Position").
					Return(dbus.Variant{}, fmt.Errorf("get: %w", domain.ErrTransport))
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "Seek",
					int64(5_000_000)).
					Return(nil)
			},
		},
		{
			name:    "Fallback - Backwards Seek",
			seconds: 0,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Metadata").
					Return(dbus.MakeVariant(12345), nil)
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Position").
					Return(dbus.MakeVariant(int64(42_000_000)), nil)
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "Seek",
					int64(-42_000_000)).
					Return(nil)
			},
		},
		{
			name:          "Invalid - Negative Seconds",
			seconds:       -1,
			setupMock:     func(m *mocks.MockClient) {},
			expectedError: domain.ErrInvalidArgument,
		},
		{
			name:          "Invalid - Microseconds Overflow",
			seconds:       MaxPositionSeconds + 1,
			setupMock:     func(m *mocks.MockClient) {},
			expectedError: domain.ErrInvalidArgument,
		},
		{
			name:    "Success - Largest Position",
			seconds: MaxPositionSeconds,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Metadata").
					Return(metadataWithTrack(dbus.ObjectPath("/org/mpris/MediaPlayer2/Track/7")), nil)
				m.EXPECT().CallMethod(gomock.Any(), playerA, bus.MprisPath, bus.MprisPlayerIface, "SetPosition",
					dbus.ObjectPath("/org/mpris/MediaPlayer2/Track/7"), int64(MaxPositionSeconds*1_000_000)).
					Return(nil)
			},
		},
		{
			name:    "Failure - Metadata Unavailable",
			seconds: 10,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Metadata").
					Return(dbus.Variant{}, fmt.Errorf("get: %w", domain.ErrTransport))
			},
			expectedError: domain.ErrTransport,
		},
		{
			name:    "Failure - Connection Lost Reading Position",
			seconds: 10,
			setupMock: func(m *mocks.MockClient) {
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Metadata").
					Return(dbus.MakeVariant(map[string]dbus.Variant{}), nil)
				m.EXPECT().GetProperty(gomock.Any(), playerA, bus.MprisPlayerIface, "Position").
					Return(dbus.Variant{}, fmt.Errorf("get: %w", domain.ErrConnection))
			},
			expectedError: domain.ErrConnection,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			m := mocks.NewMockClient(ctrl)
			tt.setupMock(m)

			c := New(zap.NewNop(), m, twoPlayers(), 0)
			err := c.SetPosition(context.Background(), tt.seconds, "")

			if tt.expectedError == nil && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.expectedError != nil && !errors.Is(err, tt.expectedError) {
				t.Fatalf("Expected %v, got %v", tt.expectedError, err)
			}
		})
	}
}
