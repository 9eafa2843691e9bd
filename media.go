package main

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrNoSource is reported when play is requested before any source has loaded
var ErrNoSource = errors.New("no source loaded")

// MediaPlayer is the single playback resource owned by the Controller.
// Commands never block on the resource; outcomes come back on Events.
type MediaPlayer interface {
	// Load switches the source. Ready then Metadata follow for the same
	// loadID once the resource can play it, or LoadFailed.
	// The previous source stops at once.
	Load(loadID, url string)
	// Play after Ended starts the source over unless it was seeked since
	Play()
	Pause()
	Seek(seconds float64)
	// SetVolume takes a normalized level in [0, 1]
	SetVolume(normalized float64)
	Events() <-chan MediaEvent
	Close() error
}

// MediaEvent is a notification from the media resource. Each one names the
// load it belongs to so late events from a replaced source can be dropped.
type MediaEvent interface {
	LoadID() string
}

// ReadyEvent fires once the resource has adopted a new source
type ReadyEvent struct{ ID string }

// MetadataEvent fires once per load after the track length is known
type MetadataEvent struct {
	ID       string
	Duration float64
}

// ProgressEvent fires repeatedly while playing
type ProgressEvent struct {
	ID       string
	Position float64
}

// PlayFailedEvent means the resource refused to start playback
type PlayFailedEvent struct {
	ID  string
	Err error
}

// LoadFailedEvent means the source could not be opened or decoded
type LoadFailedEvent struct {
	ID  string
	Err error
}

// EndedEvent fires when the source plays through to its end
type EndedEvent struct{ ID string }

func (e ReadyEvent) LoadID() string { return e.ID }
func (e MetadataEvent) LoadID() string { return e.ID }
func (e ProgressEvent) LoadID() string { return e.ID }
func (e PlayFailedEvent) LoadID() string { return e.ID }
func (e LoadFailedEvent) LoadID() string { return e.ID }
func (e EndedEvent) LoadID() string { return e.ID }

// eventQueue is the shared event channel of the MediaPlayer backends.
// The channel is never closed; shutdown only unblocks pending senders.
type eventQueue struct {
	ch   chan MediaEvent
	done chan struct{}
	once sync.Once
}

func newEventQueue(size int) *eventQueue {
	return &eventQueue{
		ch:   make(chan MediaEvent, size),
		done: make(chan struct{}),
	}
}

// emit delivers ev, waiting for room unless the queue is shut down
func (q *eventQueue) emit(ev MediaEvent) {
	select {
	case q.ch <- ev:
	case <-q.done:
	}
}

// offer delivers ev only if there is room. Used for progress, where a
// newer event will follow shortly anyway.
func (q *eventQueue) offer(ev MediaEvent) {
	select {
	case q.ch <- ev:
	default:
	}
}

func (q *eventQueue) events() <-chan MediaEvent { return q.ch }

func (q *eventQueue) shutdown() {
	q.once.Do(func() { close(q.done) })
}

// NewMediaPlayer creates the playback backend selected by playback.backend
func NewMediaPlayer(cfg Config, log *zap.Logger) (MediaPlayer, error) {
	switch cfg.Playback.Backend {
	case "", "beep":
		return NewBeepPlayer(cfg.Playback, progressInterval(cfg), log)
	case "playerctl":
		return NewPlayerctlPlayer(cfg.Playback, progressInterval(cfg), log)
	default:
		return nil, fmt.Errorf("unknown playback backend %q", cfg.Playback.Backend)
	}
}
