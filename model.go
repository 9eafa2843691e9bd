package main

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// model is the Bubble Tea model. It owns the Controller; every state change
// happens inside Update, so the controller needs no locking.
type model struct {
	ctrl   *Controller
	events <-chan MediaEvent
	keys   keyMap
	help   help.Model
	log    *zap.Logger

	color  string
	width  int
	height int
	// playlist row highlighted for enter
	cursor int

	// Album artwork support
	supportsKitty  bool
	artworkEncoded string
	forceDeleteImg bool

	// Text scrolling state
	scrollOffset int
	scrollPause  int
	scrollTick   int

	showHelp bool
}

// UI refresh tick
type tickMsg time.Time

// mediaEventMsg wraps one event from the media player
type mediaEventMsg struct {
	event MediaEvent
}

func newModel(ctrl *Controller, events <-chan MediaEvent, cfg Config, supportsKitty bool, log *zap.Logger) model {
	if log == nil {
		log = zap.NewNop()
	}
	return model{
		ctrl:          ctrl,
		events:        events,
		keys:          defaultKeyMap(),
		help:          help.New(),
		log:           log,
		color:         cfg.UI.Color,
		cursor:        ctrl.CurrentIndex(),
		supportsKitty: supportsKitty,
		scrollPause:   30,
	}
}

// Schedule next UI refresh tick
func tickCmd() tea.Cmd {
	cfg := config.Get()
	return tea.Tick(time.Duration(cfg.Timing.UIRefreshMs)*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForMediaEvent blocks for the next player event; Update re-arms it
func waitForMediaEvent(events <-chan MediaEvent) tea.Cmd {
	return func() tea.Msg {
		return mediaEventMsg{event: <-events}
	}
}

func (m model) artworkCmd() tea.Cmd {
	cfg := config.Get()
	if !cfg.Artwork.Enabled {
		return nil
	}
	return fetchArtworkCmd(m.ctrl.CurrentTrack(), cfg, m.supportsKitty)
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		waitForMediaEvent(m.events),
		watchConfigCmd(),
		m.artworkCmd(),
	)
}

// afterTrackChange resets per-track view state when the current track moved
// away from index before, and starts loading the new cover
func (m *model) afterTrackChange(before int) tea.Cmd {
	if m.ctrl.CurrentIndex() == before {
		return nil
	}
	cfg := config.Get()

	m.cursor = m.ctrl.CurrentIndex()
	m.scrollOffset = 0
	m.scrollPause = 30
	m.scrollTick = 0
	m.artworkEncoded = ""
	if cfg.UI.ColorMode == "auto" {
		m.color = cfg.UI.Color
	}
	return m.artworkCmd()
}

func (m *model) selectIndex(i int) {
	if err := m.ctrl.SelectIndex(i); err != nil {
		m.log.Debug("ignoring track selection", zap.Int("index", i), zap.Error(err))
	}
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cfg := config.Get()
	before := m.ctrl.CurrentIndex()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Toggle):
		m.ctrl.TogglePlayback()
	case key.Matches(msg, m.keys.Next):
		m.ctrl.Skip(Next)
	case key.Matches(msg, m.keys.Prev):
		m.ctrl.Skip(Prev)
	case key.Matches(msg, m.keys.SeekBack):
		m.ctrl.SeekBy(-cfg.Playback.SeekStepS)
	case key.Matches(msg, m.keys.SeekFwd):
		m.ctrl.SeekBy(cfg.Playback.SeekStepS)
	case key.Matches(msg, m.keys.VolumeDown):
		m.ctrl.AdjustVolume(-cfg.Playback.VolumeStep)
	case key.Matches(msg, m.keys.VolumeUp):
		m.ctrl.AdjustVolume(cfg.Playback.VolumeStep)
	case key.Matches(msg, m.keys.CursorUp):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.CursorDown):
		if m.cursor < m.ctrl.Playlist().Len()-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		m.selectIndex(m.cursor)
	case key.Matches(msg, m.keys.Artwork):
		cfg.Artwork.Enabled = !cfg.Artwork.Enabled
		config.Set(cfg)
		m.artworkEncoded = ""
		if cfg.Artwork.Enabled {
			return m, m.artworkCmd()
		}
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		return m, nil
	default:
		// 1-9 play the track at that position
		if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			m.selectIndex(int(s[0] - '1'))
		}
	}

	cmd := m.afterTrackChange(before)
	return m, cmd
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		// stale placements survive a resize otherwise
		m.forceDeleteImg = true
		return m, nil

	case mediaEventMsg:
		before := m.ctrl.CurrentIndex()
		m.ctrl.HandleEvent(msg.event)
		cmd := m.afterTrackChange(before)
		return m, tea.Batch(waitForMediaEvent(m.events), cmd)

	case artworkMsg:
		// a cover for a track we already left
		if msg.trackID != m.ctrl.CurrentTrack().ID {
			return m, nil
		}
		if msg.err != nil {
			m.log.Debug("artwork unavailable", zap.Int("track_id", msg.trackID), zap.Error(msg.err))
			m.artworkEncoded = ""
			return m, nil
		}
		m.artworkEncoded = msg.encoded
		if config.Get().UI.ColorMode == "auto" && msg.color != "" {
			m.color = msg.color
		}
		return m, nil

	case configReloadMsg:
		cfg := config.Get()
		if cfg.UI.ColorMode == "manual" {
			m.color = cfg.UI.Color
		}
		if !cfg.Artwork.Enabled {
			m.artworkEncoded = ""
			return m, watchConfigCmd()
		}
		if m.artworkEncoded == "" {
			return m, tea.Batch(watchConfigCmd(), m.artworkCmd())
		}
		return m, watchConfigCmd()

	case tickMsg:
		m.forceDeleteImg = false
		m.advanceScroll()
		return m, tickCmd()
	}

	return m, nil
}

// advanceScroll moves long titles one rune every third tick and pauses
// for 30 ticks whenever the text wraps around
func (m *model) advanceScroll() {
	m.scrollTick++
	if m.scrollPause > 0 {
		m.scrollPause--
		return
	}
	if m.scrollTick%3 != 0 {
		return
	}
	m.scrollOffset++

	maxLen := m.textWidth(config.Get())
	t := m.ctrl.CurrentTrack()
	longest := max(len([]rune(t.Title)), len([]rune(t.Artist)))
	if longest > maxLen && m.scrollOffset >= longest+len([]rune(scrollSeparator)) {
		m.scrollOffset = 0
		m.scrollPause = 30
	}
}

// textWidth is the room for title and artist next to (or without) the cover
func (m model) textWidth(cfg Config) int {
	if m.supportsKitty && cfg.Artwork.Enabled && m.artworkEncoded != "" {
		return cfg.Text.MaxLengthWithArt
	}
	return cfg.Text.MaxLengthNoArt
}
