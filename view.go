package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func statusIcon(s PlaybackStatus) string {
	switch s {
	case StatusPlaying:
		return "󰐊 "
	case StatusLoading:
		return "󰔟 "
	default:
		return "󰏤 "
	}
}

func (m model) View() string {
	cfg := config.Get()
	c := m.ctrl

	color := lipgloss.Color(m.color)
	highlight := lipgloss.NewStyle().Foreground(color)
	white := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	labelStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2)

	var text strings.Builder
	text.WriteString(highlight.Render("󰓃 Sonic") + "\n\n")

	addLine := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&text, "%s %s\n", labelStyle.Render(label), value)
		}
	}

	maxLen := m.textWidth(cfg)
	track := c.CurrentTrack()
	addLine("󰎈 ", scrollText(track.Title, maxLen, m.scrollOffset))
	addLine("󰠃 ", scrollText(track.Artist, maxLen, m.scrollOffset))
	addLine(statusIcon(c.Status()), c.Status().String())

	if err := c.LastError(); err != nil {
		text.WriteString(errorStyle.Render(truncateText("⚠ "+err.Error(), maxLen+4)) + "\n")
	}

	// Progress bar stays empty until the player reports a length
	barWidth := cfg.UI.MaxWidth - 17
	fraction, _ := c.Progress()
	done, rest := meter(fraction, barWidth, "█", "─")
	progressBar := fmt.Sprintf("\n%s %s/%s",
		highlight.Render(done)+white.Render(rest),
		highlight.Render(formatTime(c.Position())),
		highlight.Render(formatDuration(c.Duration())),
	)

	volOn, volOff := meter(float64(c.Volume())/100, 10, "■", "·")
	volumeBar := fmt.Sprintf("\n%s %s %s",
		labelStyle.Render("󰕾 "),
		highlight.Render(volOn)+mutedStyle.Render(volOff),
		highlight.Render(fmt.Sprintf("%d%%", c.Volume())),
	)

	var topSection string
	if m.artworkEncoded != "" && m.supportsKitty && cfg.Artwork.Enabled {
		var deleteCmd string
		if m.forceDeleteImg {
			deleteCmd = deleteAllImages
		}
		paddedText := lipgloss.NewStyle().
			PaddingLeft(cfg.Artwork.Padding).
			Render(text.String())
		topSection = deleteCmd + m.artworkEncoded + paddedText
	} else if m.supportsKitty {
		topSection = deleteAllImages + text.String()
	} else {
		topSection = text.String()
	}

	card := borderStyle.
		Width(cfg.UI.MaxWidth).
		Render(topSection + progressBar + volumeBar)

	list := borderStyle.
		Width(cfg.UI.MaxWidth).
		Render(m.playlistView(cfg, highlight, mutedStyle))

	helpText := lipgloss.NewStyle().
		Width(cfg.UI.MaxWidth).
		Align(lipgloss.Center).
		Render(m.help.View(m.keys))

	fullUI := lipgloss.JoinVertical(lipgloss.Center, card, list, "\n"+helpText)

	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		fullUI,
	)
}

// playlistView lists every track with its display duration, marking the
// cursor row and the track that is currently playing
func (m model) playlistView(cfg Config, highlight, muted lipgloss.Style) string {
	c := m.ctrl
	var b strings.Builder
	b.WriteString(highlight.Bold(true).Render("Playlist") + "\n\n")

	nameWidth := cfg.UI.MaxWidth - 16
	for i, t := range c.Playlist().Tracks() {
		cursor := "  "
		if i == m.cursor {
			cursor = highlight.Render("› ")
		}
		marker := " "
		if i == c.CurrentIndex() && c.IsPlaying() {
			marker = highlight.Render("♪")
		}

		name := truncateText(fmt.Sprintf("%s · %s", t.Title, t.Artist), nameWidth)
		if i == c.CurrentIndex() {
			name = highlight.Render(name)
		}
		fmt.Fprintf(&b, "%s%s %d. %s %s\n", cursor, marker, i+1, name, muted.Render(t.Duration))
	}
	return strings.TrimRight(b.String(), "\n")
}
