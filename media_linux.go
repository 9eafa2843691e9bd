//go:build linux
// +build linux

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// commandTimeout bounds a single transport command to the player
const commandTimeout = 5 * time.Second

// PlayerctlPlayer drives an external MPRIS player (mpv, VLC, ...) through
// playerctl. The player opens the URL itself; readiness is observed by
// polling until its metadata reports the new URL.
type PlayerctlPlayer struct {
	queue *eventQueue
	log   *zap.Logger
	// run executes one playerctl invocation and returns trimmed stdout
	run         func(ctx context.Context, args ...string) (string, error)
	interval    time.Duration
	loadTimeout time.Duration
	cmdTimeout  time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	// transport commands, run in order off the UI goroutine
	jobs chan func(ctx context.Context)

	mu      sync.Mutex
	loadID  string
	ready   bool
	playing bool
	// the player stopped at the end of the track
	ended bool
	// cancels the watch loop of the current load
	stopWatch context.CancelFunc
}

var _ MediaPlayer = (*PlayerctlPlayer)(nil)

// NewPlayerctlPlayer checks that playerctl is installed. cfg.PlayerctlPlayer,
// when set, is passed as --player to target one MPRIS client.
func NewPlayerctlPlayer(cfg PlaybackConfig, interval time.Duration, log *zap.Logger) (*PlayerctlPlayer, error) {
	if _, err := exec.LookPath("playerctl"); err != nil {
		return nil, fmt.Errorf("playerctl backend: %w", err)
	}
	timeout := time.Duration(cfg.LoadTimeoutS) * time.Second
	return newPlayerctlPlayer(playerctlRunner(cfg.PlayerctlPlayer), interval, timeout, log), nil
}

func newPlayerctlPlayer(run func(ctx context.Context, args ...string) (string, error), interval, loadTimeout time.Duration, log *zap.Logger) *PlayerctlPlayer {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &PlayerctlPlayer{
		queue:       newEventQueue(64),
		log:         log.Named("playerctl"),
		run:         run,
		interval:    interval,
		loadTimeout: loadTimeout,
		cmdTimeout:  commandTimeout,
		ctx:         ctx,
		cancel:      cancel,
		jobs:        make(chan func(ctx context.Context), 64),
	}
	go p.work()
	return p
}

// work runs queued commands one at a time, each under cmdTimeout
func (p *PlayerctlPlayer) work() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			ctx, cancel := context.WithTimeout(p.ctx, p.cmdTimeout)
			job(ctx)
			cancel()
		}
	}
}

// enqueue hands job to the worker; it only waits if the queue is full
func (p *PlayerctlPlayer) enqueue(job func(ctx context.Context)) {
	select {
	case p.jobs <- job:
	case <-p.ctx.Done():
	}
}

func playerctlRunner(player string) func(ctx context.Context, args ...string) (string, error) {
	return func(ctx context.Context, args ...string) (string, error) {
		if player != "" {
			args = append([]string{"--player", player}, args...)
		}
		cmd := exec.CommandContext(ctx, "playerctl", args...)
		var out bytes.Buffer
		cmd.Stdout = &out
		if err := cmd.Run(); err != nil {
			return "", fmt.Errorf("playerctl %s failed: %w", strings.Join(args, " "), err)
		}
		return strings.TrimSpace(out.String()), nil
	}
}

func (p *PlayerctlPlayer) Events() <-chan MediaEvent { return p.queue.events() }

// Load asks the player to open url and starts watching it
func (p *PlayerctlPlayer) Load(loadID, url string) {
	p.mu.Lock()
	if p.stopWatch != nil {
		p.stopWatch()
	}
	ctx, cancel := context.WithCancel(p.ctx)
	p.loadID = loadID
	p.ready = false
	p.playing = false
	p.ended = false
	p.stopWatch = cancel
	p.mu.Unlock()

	go p.watch(ctx, loadID, url)
}

// watch waits for the player to adopt url, reports Ready and Metadata, then
// polls position until the load is replaced.
func (p *PlayerctlPlayer) watch(ctx context.Context, loadID, url string) {
	if _, err := p.run(ctx, "open", url); err != nil {
		p.queue.emit(LoadFailedEvent{ID: loadID, Err: err})
		return
	}

	deadline := time.Now().Add(p.loadTimeout)
	for {
		current, err := p.run(ctx, "metadata", "xesam:url")
		if err == nil && current == url {
			break
		}
		if ctx.Err() != nil {
			return
		}
		if time.Now().After(deadline) {
			p.queue.emit(LoadFailedEvent{ID: loadID, Err: errors.New("player did not open the track in time")})
			return
		}
		if !p.sleep(ctx) {
			return
		}
	}

	// MPRIS players start on open; hold it until the controller asks
	if _, err := p.run(ctx, "pause"); err != nil {
		p.log.Debug("pause after open failed", zap.Error(err))
	}

	p.mu.Lock()
	if p.loadID != loadID {
		p.mu.Unlock()
		return
	}
	p.ready = true
	p.mu.Unlock()
	p.queue.emit(ReadyEvent{ID: loadID})

	if length, err := p.length(ctx); err == nil {
		p.queue.emit(MetadataEvent{ID: loadID, Duration: length})
	} else {
		p.log.Warn("no track length", zap.String("load_id", loadID), zap.Error(err))
	}

	p.poll(ctx, loadID)
}

func (p *PlayerctlPlayer) poll(ctx context.Context, loadID string) {
	for p.sleep(ctx) {
		p.mu.Lock()
		playing := p.playing
		p.mu.Unlock()
		if !playing {
			continue
		}

		status, err := p.run(ctx, "status")
		if err != nil {
			continue
		}
		if strings.EqualFold(status, "Stopped") {
			p.mu.Lock()
			p.playing = false
			p.ended = true
			p.mu.Unlock()
			p.queue.emit(EndedEvent{ID: loadID})
			continue
		}

		if pos, err := p.position(ctx); err == nil {
			p.queue.offer(ProgressEvent{ID: loadID, Position: pos})
		}
	}
}

func (p *PlayerctlPlayer) sleep(ctx context.Context) bool {
	t := time.NewTimer(p.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// length reads mpris:length, which is in microseconds
func (p *PlayerctlPlayer) length(ctx context.Context) (float64, error) {
	out, err := p.run(ctx, "metadata", "mpris:length")
	if err != nil {
		return 0, err
	}
	us, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}
	return float64(us) / 1e6, nil
}

func (p *PlayerctlPlayer) position(ctx context.Context) (float64, error) {
	out, err := p.run(ctx, "position")
	if err != nil {
		return 0, err
	}
	pos, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse position: %w", err)
	}
	return pos, nil
}

// Play starts the player in the background; a refusal or a timeout comes
// back as a PlayFailedEvent
func (p *PlayerctlPlayer) Play() {
	p.mu.Lock()
	id, ready := p.loadID, p.ready
	p.mu.Unlock()

	if !ready {
		p.queue.emit(PlayFailedEvent{ID: id, Err: ErrNoSource})
		return
	}

	p.enqueue(func(ctx context.Context) {
		p.mu.Lock()
		rewind := p.ended && p.loadID == id
		p.ended = false
		p.mu.Unlock()

		if rewind {
			if _, err := p.run(ctx, "position", "0"); err != nil {
				p.log.Warn("rewind failed", zap.Error(err))
			}
		}
		if _, err := p.run(ctx, "play"); err != nil {
			p.queue.emit(PlayFailedEvent{ID: id, Err: err})
			return
		}
		p.mu.Lock()
		if p.loadID == id {
			p.playing = true
		}
		p.mu.Unlock()
	})
}

func (p *PlayerctlPlayer) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
	p.enqueue(func(ctx context.Context) {
		if _, err := p.run(ctx, "pause"); err != nil {
			p.log.Warn("pause failed", zap.Error(err))
		}
	})
}

func (p *PlayerctlPlayer) Seek(seconds float64) {
	p.mu.Lock()
	p.ended = false
	p.mu.Unlock()
	p.enqueue(func(ctx context.Context) {
		if _, err := p.run(ctx, "position", strconv.FormatFloat(seconds, 'f', 3, 64)); err != nil {
			p.log.Warn("seek failed", zap.Float64("seconds", seconds), zap.Error(err))
		}
	})
}

func (p *PlayerctlPlayer) SetVolume(normalized float64) {
	p.enqueue(func(ctx context.Context) {
		if _, err := p.run(ctx, "volume", strconv.FormatFloat(normalized, 'f', 2, 64)); err != nil {
			p.log.Warn("set volume failed", zap.Float64("volume", normalized), zap.Error(err))
		}
	})
}

func (p *PlayerctlPlayer) Close() error {
	p.cancel()
	p.queue.shutdown()
	return nil
}
