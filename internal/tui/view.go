package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/genricoloni/mediaplayer/internal/domain"
)

const (
	boxWidth    = 56
	accentColor = "86"
)

var (
	accent      = lipgloss.Color(accentColor)
	highlight   = lipgloss.NewStyle().Foreground(accent)
	labelStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	white       = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(1, 2)
)

func (m Model) View() string {
	var content strings.Builder

	content.WriteString(highlight.Render("Now Playing") + "\n\n")

	current, ok := m.current()
	if !ok {
		content.WriteString(mutedStyle.Render("Nothing playing"))
	} else {
		addLine := func(label, value string) {
			if value != "" {
				content.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(label), value))
			}
		}
		addLine("Title ", current.Title)
		addLine("Artist", current.Artist)
		addLine("Album ", current.Album)
		addLine("Status", string(current.Status))

		if current.Duration > 0 {
			content.WriteString("\n" + progressBar(m.position(current), current.Duration, boxWidth-20))
		}
	}

	if len(m.snapshot) > 1 {
		content.WriteString("\n\n" + m.playerList(current.BusURI))
	}

	if m.lastError != nil {
		content.WriteString("\n\n" + errorStyle.Render(errorText(m.lastError)))
	}

	box := borderStyle.Width(boxWidth).Render(content.String())

	var help string
	if m.showHelp {
		help = lipgloss.JoinHorizontal(lipgloss.Center,
			"Play/Pause: "+highlight.Render("p"),
			"  Next: "+highlight.Render("n"),
			"  Previous: "+highlight.Render("b"),
			"  Stop: "+highlight.Render("s"),
			"  Switch: "+highlight.Render("tab"),
			"  Quit: "+highlight.Render("q"),
		)
	} else {
		help = mutedStyle.Render("Press ? for help")
	}

	ui := lipgloss.JoinVertical(lipgloss.Center, box, "\n"+help)
	if m.width == 0 || m.height == 0 {
		return ui
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, ui)
}

func (m Model) playerList(current string) string {
	lines := make([]string, 0, len(m.snapshot))
	for _, info := range m.snapshot {
		name := strings.TrimPrefix(info.BusURI, "org.mpris.MediaPlayer2.")
		line := fmt.Sprintf("%s (%s)", name, info.Status)
		if info.BusURI == current {
			lines = append(lines, highlight.Render("> "+line))
		} else {
			lines = append(lines, mutedStyle.Render("  "+line))
		}
	}
	return strings.Join(lines, "\n")
}

func progressBar(position, duration int64, width int) string {
	filled := 0
	if duration > 0 {
		filled = int(float64(width) * float64(position) / float64(duration))
	}
	filled = max(0, min(filled, width))

	return highlight.Render(strings.Repeat("█", filled)) +
		white.Render(strings.Repeat("─", width-filled)) +
		" " + highlight.Render(formatTime(position)+"/"+formatTime(duration))
}

// formatTime renders seconds as m:ss, or h:mm:ss past an hour
func formatTime(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds/60)%60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func errorText(err error) string {
	if errors.Is(err, domain.ErrNoPlayer) {
		return "No player to control"
	}
	return "Error: " + err.Error()
}
