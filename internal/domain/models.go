package domain

import "slices"

// PlayerStatus represents the playback status reported by a player.
// Values other than the constants below are passed through unchanged.
type PlayerStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlayerStatus = "Stopped"
	// StatusIdle is reported by some players with nothing loaded
	StatusIdle PlayerStatus = "Idle"
	// StatusUnknown is used when the player does not report a string status
	StatusUnknown PlayerStatus = "Unknown"
)

// Priority returns the sort key of a status. Lower sorts first.
func (s PlayerStatus) Priority() int {
	switch s {
	case StatusPlaying:
		return 1
	case StatusPaused:
		return 2
	case StatusIdle:
		return 3
	default:
		return 100
	}
}

// PlayerInfo is the normalized "now playing" view of one player.
type PlayerInfo struct {
	// BusURI is the well-known bus name of the player
	BusURI string `json:"dbus_uri" yaml:"dbus_uri"`
	Title  string `json:"title" yaml:"title"`
	// Artist holds all artists joined with ", "
	Artist string `json:"artist" yaml:"artist"`
	Album  string `json:"album" yaml:"album"`
	ArtURL string `json:"arturl" yaml:"arturl"`
	// Duration of the track in seconds
	Duration int64 `json:"duration" yaml:"duration"`
	// Position in the track in seconds
	Position int64        `json:"position" yaml:"position"`
	Status   PlayerStatus `json:"status" yaml:"status"`
}

// Snapshot is the ordered list of visible players, highest priority first.
type Snapshot []PlayerInfo

// Equal reports whether both snapshots hold the same players in the same order.
func (s Snapshot) Equal(other Snapshot) bool {
	return slices.Equal(s, other)
}

// Active returns the highest-priority player, if any.
func (s Snapshot) Active() (PlayerInfo, bool) {
	if len(s) == 0 {
		return PlayerInfo{}, false
	}
	return s[0], true
}

// Find returns the player with the given bus name.
func (s Snapshot) Find(busURI string) (PlayerInfo, bool) {
	for _, p := range s {
		if p.BusURI == busURI {
			return p, true
		}
	}
	return PlayerInfo{}, false
}

// Action is a zero-argument playback command.
type Action string

const (
	ActionPlay      Action = "Play"
	ActionPause     Action = "Pause"
	ActionPlayPause Action = "PlayPause"
	ActionStop      Action = "Stop"
	ActionNext      Action = "Next"
	ActionPrevious  Action = "Previous"
)

// Actions lists every supported action in display order.
var Actions = []Action{ActionPlay, ActionPause, ActionPlayPause, ActionStop, ActionNext, ActionPrevious}

// ParseAction validates a user supplied action name.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", &InvalidArgumentError{Field: "action", Message: "unknown action " + s}
}

// WatcherState is the lifecycle state of a watcher.
type WatcherState int

const (
	WatcherIdle WatcherState = iota
	WatcherRunning
	WatcherStopped
	WatcherFailed
)

func (s WatcherState) String() string {
	switch s {
	case WatcherIdle:
		return "idle"
	case WatcherRunning:
		return "running"
	case WatcherStopped:
		return "stopped"
	case WatcherFailed:
		return "failed"
	default:
		return "unknown"
	}
}
