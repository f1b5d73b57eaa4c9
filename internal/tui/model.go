package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/genricoloni/mediaplayer/internal/domain"
)

const (
	tickInterval   = time.Second
	controlTimeout = 2 * time.Second
)

// Controller sends playback actions to a player
type Controller interface {
	Control(ctx context.Context, action domain.Action, player string) error
}

// SnapshotMsg carries a newly delivered snapshot into the program
type SnapshotMsg domain.Snapshot

// ErrorMsg reports a failure outside of the program, such as a lost connection
type ErrorMsg struct {
	Err error
}

// UI refresh tick, drives position interpolation
type tickMsg time.Time

// Result of a control action
type controlMsg struct {
	action domain.Action
	err    error
}

// Model is the Bubble Tea model of the now-playing view
type Model struct {
	ctl Controller

	snapshot   domain.Snapshot
	receivedAt time.Time // When the snapshot arrived, for position interpolation
	selected   string    // Bus name of the selected player; empty follows the active one
	lastError  error

	width    int
	height   int
	showHelp bool
	now      func() time.Time
}

// New creates a model that sends actions through ctl
func New(ctl Controller) Model {
	return Model{
		ctl: ctl,
		now: time.Now,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// controlCmd runs action in the background so the UI never blocks on the bus
func (m Model) controlCmd(action domain.Action, player string) tea.Cmd {
	ctl := m.ctl
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), controlTimeout)
		defer cancel()
		return controlMsg{action: action, err: ctl.Control(ctx, action, player)}
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case SnapshotMsg:
		m.snapshot = domain.Snapshot(msg)
		m.receivedAt = m.now()
		if _, ok := m.snapshot.Find(m.selected); !ok {
			m.selected = ""
		}
		m.lastError = nil

	case ErrorMsg:
		m.lastError = msg.Err

	case controlMsg:
		m.lastError = msg.err

	case tickMsg:
		return m, tickCmd()
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var action domain.Action
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "p", " ":
		action = domain.ActionPlayPause
	case "n":
		action = domain.ActionNext
	case "b":
		action = domain.ActionPrevious
	case "s":
		action = domain.ActionStop
	case "tab":
		m.selected = m.nextPlayer()
		return m, nil
	case "?":
		m.showHelp = !m.showHelp
		return m, nil
	default:
		return m, nil
	}

	current, ok := m.current()
	if !ok {
		m.lastError = domain.ErrNoPlayer
		return m, nil
	}
	return m, m.controlCmd(action, current.BusURI)
}

// current returns the selected player, or the active one when none is selected
func (m Model) current() (domain.PlayerInfo, bool) {
	if m.selected != "" {
		if info, ok := m.snapshot.Find(m.selected); ok {
			return info, true
		}
	}
	return m.snapshot.Active()
}

// nextPlayer cycles through the snapshot in priority order
func (m Model) nextPlayer() string {
	if len(m.snapshot) == 0 {
		return ""
	}
	current, _ := m.current()
	for i, info := range m.snapshot {
		if info.BusURI == current.BusURI {
			return m.snapshot[(i+1)%len(m.snapshot)].BusURI
		}
	}
	return m.snapshot[0].BusURI
}

// position estimates the playback position of info in seconds
func (m Model) position(info domain.PlayerInfo) int64 {
	pos := info.Position
	if info.Status == domain.StatusPlaying && !m.receivedAt.IsZero() {
		pos += int64(m.now().Sub(m.receivedAt).Seconds())
	}
	if info.Duration > 0 && pos > info.Duration {
		pos = info.Duration
	}
	return pos
}
