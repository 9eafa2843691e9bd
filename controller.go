package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrUnknownTrack    = errors.New("track is not in the playlist")
	ErrPlaybackBlocked = errors.New("playback blocked")
)

// Direction selects the neighbour for Skip
type Direction int

const (
	Next Direction = iota
	Prev
)

func (d Direction) String() string {
	if d == Prev {
		return "prev"
	}
	return "next"
}

// PlaybackStatus is what the UI shows for the current track
type PlaybackStatus int

const (
	StatusPaused PlaybackStatus = iota
	StatusLoading
	StatusPlaying
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "Playing"
	case StatusLoading:
		return "Loading"
	default:
		return "Paused"
	}
}

// ControllerOptions configures a Controller at mount time
type ControllerOptions struct {
	Volume      int
	AutoAdvance bool
	Logger      *zap.Logger
	// NewLoadID overrides load id generation (tests)
	NewLoadID func() string
}

// Controller is the single authority over playback state. It turns user
// intents into MediaPlayer commands and folds the player's events back
// into state. It is not safe for concurrent use; every call must come
// from the UI event loop.
type Controller struct {
	playlist    Playlist
	player      MediaPlayer
	log         *zap.Logger
	autoAdvance bool
	newLoadID   func() string

	current int
	loadID  string
	ready   bool
	// play was requested before the source became ready
	pendingPlay bool
	playing     bool
	// the source played through; the next play starts it over
	ended bool
	// the load failed; the next play loads it again
	loadFailed bool

	position    float64
	provisional bool

	duration      float64
	durationKnown bool

	volume  int
	lastErr error
}

// NewController mounts a controller on the first playlist entry, paused,
// and pushes the initial volume to the player.
func NewController(playlist Playlist, player MediaPlayer, opts ControllerOptions) *Controller {
	c := &Controller{
		playlist:    playlist,
		player:      player,
		log:         opts.Logger,
		autoAdvance: opts.AutoAdvance,
		newLoadID:   opts.NewLoadID,
		volume:      clampVolume(opts.Volume),
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.newLoadID == nil {
		c.newLoadID = uuid.NewString
	}

	c.player.SetVolume(float64(c.volume) / 100)
	c.load(0)
	return c
}

// load switches the player to the track at index i and resets per-track state
func (c *Controller) load(i int) {
	c.current = i
	c.loadID = c.newLoadID()
	c.ready = false
	c.ended = false
	c.loadFailed = false
	c.position = 0
	c.provisional = false
	c.duration = 0
	c.durationKnown = false

	t := c.playlist.At(i)
	c.log.Debug("loading track",
		zap.Int("track_id", t.ID),
		zap.String("title", t.Title),
		zap.String("load_id", c.loadID))
	c.player.Load(c.loadID, t.AudioURL)
}

// SelectTrack makes t current and starts it. The play command is held back
// until the player reports the new source ready.
func (c *Controller) SelectTrack(t Track) error {
	if !c.playlist.Contains(t) {
		return fmt.Errorf("%w: %d", ErrUnknownTrack, t.ID)
	}
	i, _ := c.playlist.IndexOf(t.ID)
	c.playing = true
	c.lastErr = nil

	if i == c.current && c.ready {
		c.resume()
		return nil
	}
	if i != c.current || c.loadFailed {
		c.load(i)
	}
	c.pendingPlay = true
	return nil
}

// resume plays the ready source, from the start if it had ended
func (c *Controller) resume() {
	if c.ended {
		c.ended = false
		c.position = 0
		c.provisional = false
	}
	c.pendingPlay = false
	c.player.Play()
}

// SelectIndex is SelectTrack by playlist position
func (c *Controller) SelectIndex(i int) error {
	if i < 0 || i >= c.playlist.Len() {
		return fmt.Errorf("%w: index %d", ErrUnknownTrack, i)
	}
	return c.SelectTrack(c.playlist.At(i))
}

// TogglePlayback flips between playing and paused
func (c *Controller) TogglePlayback() {
	if c.playing {
		c.playing = false
		c.pendingPlay = false
		c.player.Pause()
		return
	}

	c.playing = true
	c.lastErr = nil
	if c.ready {
		c.resume()
		return
	}
	if c.loadFailed {
		c.load(c.current)
	}
	c.pendingPlay = true
}

// Skip moves to the neighbouring track, wrapping at both ends, and plays it
func (c *Controller) Skip(d Direction) {
	step := 1
	if d == Prev {
		step = -1
	}
	next := c.playlist.Wrap(c.current + step)
	c.log.Debug("skip", zap.Stringer("direction", d), zap.Int("index", next))
	// next is always a playlist member
	_ = c.SelectTrack(c.playlist.At(next))
}

// Seek jumps to seconds and shows it right away. The position stays
// provisional until the next progress event. An unknown duration is never
// used as an upper bound.
func (c *Controller) Seek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	if c.durationKnown && seconds > c.duration {
		seconds = c.duration
	}
	c.player.Seek(seconds)
	c.position = seconds
	c.provisional = true
	c.ended = false
}

// SeekBy seeks relative to the current position
func (c *Controller) SeekBy(delta float64) {
	c.Seek(c.position + delta)
}

// SetVolume stores level (clamped to 0-100) and forwards it normalized
func (c *Controller) SetVolume(level int) {
	c.volume = clampVolume(level)
	c.player.SetVolume(float64(c.volume) / 100)
}

// AdjustVolume changes the volume by delta
func (c *Controller) AdjustVolume(delta int) {
	c.SetVolume(c.volume + delta)
}

// HandleEvent routes a media event to its callback
func (c *Controller) HandleEvent(ev MediaEvent) {
	switch e := ev.(type) {
	case ReadyEvent:
		c.OnReady(e.ID)
	case MetadataEvent:
		c.OnMetadataReady(e.ID, e.Duration)
	case ProgressEvent:
		c.OnProgress(e.ID, e.Position)
	case PlayFailedEvent:
		c.OnPlayFailed(e.ID, e.Err)
	case LoadFailedEvent:
		c.OnLoadFailed(e.ID, e.Err)
	case EndedEvent:
		c.OnEnded(e.ID)
	}
}

func (c *Controller) stale(loadID, event string) bool {
	if loadID == c.loadID {
		return false
	}
	c.log.Debug("dropping stale media event",
		zap.String("event", event),
		zap.String("load_id", loadID),
		zap.String("current_load_id", c.loadID))
	return true
}

// OnReady marks the source adopted and issues any play held back for it
func (c *Controller) OnReady(loadID string) {
	if c.stale(loadID, "ready") {
		return
	}
	c.ready = true
	if c.pendingPlay && c.playing {
		c.resume()
	}
}

// OnProgress takes the player's position as authoritative
func (c *Controller) OnProgress(loadID string, elapsed float64) {
	if c.stale(loadID, "progress") {
		return
	}
	if c.durationKnown && elapsed > c.duration {
		elapsed = c.duration
	}
	c.position = elapsed
	c.provisional = false
}

// OnMetadataReady records the track length reported by the player
func (c *Controller) OnMetadataReady(loadID string, seconds float64) {
	if c.stale(loadID, "metadata") {
		return
	}
	if seconds <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		c.log.Warn("ignoring unusable duration", zap.Float64("duration", seconds))
		return
	}
	c.duration = seconds
	c.durationKnown = true
}

// OnPlayFailed reverts the play intent and surfaces the refusal
func (c *Controller) OnPlayFailed(loadID string, err error) {
	if c.stale(loadID, "play_failed") {
		return
	}
	c.playing = false
	c.pendingPlay = false
	c.lastErr = fmt.Errorf("%w: %v", ErrPlaybackBlocked, err)
	c.log.Warn("playback refused", zap.Int("track_id", c.CurrentTrack().ID), zap.Error(err))
}

// OnLoadFailed leaves the track selected but stopped with an unknown length
func (c *Controller) OnLoadFailed(loadID string, err error) {
	if c.stale(loadID, "load_failed") {
		return
	}
	c.playing = false
	c.pendingPlay = false
	c.loadFailed = true
	c.lastErr = fmt.Errorf("load %q: %w", c.CurrentTrack().Title, err)
	c.log.Error("track load failed", zap.Int("track_id", c.CurrentTrack().ID), zap.Error(err))
}

// OnEnded advances to the next track, or stops at the end of this one
func (c *Controller) OnEnded(loadID string) {
	if c.stale(loadID, "ended") {
		return
	}
	c.ended = true
	if c.autoAdvance {
		c.Skip(Next)
		return
	}
	c.playing = false
	c.pendingPlay = false
	if c.durationKnown {
		c.position = c.duration
	}
}

func (c *Controller) Playlist() Playlist { return c.playlist }
func (c *Controller) CurrentTrack() Track { return c.playlist.At(c.current) }
func (c *Controller) CurrentIndex() int { return c.current }
func (c *Controller) IsPlaying() bool { return c.playing }
func (c *Controller) Volume() int { return c.volume }
func (c *Controller) Position() float64 { return c.position }
func (c *Controller) LastError() error { return c.lastErr }
func (c *Controller) LoadID() string { return c.loadID }
func (c *Controller) PositionProvisional() bool { return c.provisional }

// Duration returns the track length and whether the player has reported it
func (c *Controller) Duration() (float64, bool) {
	return c.duration, c.durationKnown
}

// Progress returns the played fraction, or false while the length is unknown
func (c *Controller) Progress() (float64, bool) {
	if !c.durationKnown {
		return 0, false
	}
	p := c.position / c.duration
	if p > 1 {
		p = 1
	}
	return p, true
}

func (c *Controller) Status() PlaybackStatus {
	switch {
	case !c.playing:
		return StatusPaused
	case !c.ready:
		return StatusLoading
	default:
		return StatusPlaying
	}
}

func clampVolume(level int) int {
	if level < 0 {
		return 0
	}
	if level > 100 {
		return 100
	}
	return level
}
