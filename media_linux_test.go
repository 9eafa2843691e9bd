//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakePlayerctl answers playerctl invocations the way an MPRIS player would
type fakePlayerctl struct {
	mu       sync.Mutex
	calls    []string
	url      string
	opened   bool
	stopped  bool
	failPlay bool
	// never report the opened url
	stuck bool
	// play blocks until the command times out
	hangPlay bool
}

func (f *fakePlayerctl) run(ctx context.Context, args ...string) (string, error) {
	f.mu.Lock()
	hang := f.hangPlay && args[0] == "play"
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return "", ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.Join(args, " "))

	switch args[0] {
	case "open":
		f.url = args[1]
		f.opened = true
	case "metadata":
		if args[1] == "mpris:length" {
			return "180000000", nil
		}
		if f.stuck || !f.opened {
			return "https://elsewhere.example/other.mp3", nil
		}
		return f.url, nil
	case "status":
		if f.stopped {
			return "Stopped", nil
		}
		return "Playing", nil
	case "position":
		if len(args) == 1 {
			return "12.500000", nil
		}
	case "play":
		f.stopped = false
		if f.failPlay {
			return "", errors.New("No players found")
		}
	}
	return "", nil
}

func (f *fakePlayerctl) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

// waitCalled waits for the worker to issue call
func (f *fakePlayerctl) waitCalled(t *testing.T, call string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !f.called(call) {
		if time.Now().After(deadline) {
			t.Fatalf("playerctl %q was never run; calls: %v", call, f.snapshot())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (f *fakePlayerctl) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakePlayerctl) stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func newTestPlayerctl(t *testing.T, fake *fakePlayerctl, loadTimeout time.Duration) *PlayerctlPlayer {
	t.Helper()
	p := newPlayerctlPlayer(fake.run, 5*time.Millisecond, loadTimeout, nil)
	t.Cleanup(func() { p.Close() })
	return p
}

// waitFor returns the next event of type T, skipping progress updates
func waitFor[T MediaEvent](t *testing.T, events <-chan MediaEvent) T {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-events:
			if want, ok := ev.(T); ok {
				return want
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestPlayerctlLoadAndPlay(t *testing.T) {
	fake := &fakePlayerctl{}
	p := newTestPlayerctl(t, fake, time.Second)
	url := "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3"

	p.Load("load-1", url)

	ready := waitFor[ReadyEvent](t, p.Events())
	assertEqual(t, ready.ID, "load-1", "ready id")
	meta := waitFor[MetadataEvent](t, p.Events())
	assertEqual(t, meta.Duration, 180.0, "duration")

	if !fake.called("open " + url) {
		t.Error("expected the player to be asked to open the url")
	}
	if !fake.called("pause") {
		t.Error("expected the player to be held paused after open")
	}

	p.Play()
	progress := waitFor[ProgressEvent](t, p.Events())
	assertEqual(t, progress.ID, "load-1", "progress id")
	assertEqual(t, progress.Position, 12.5, "position")

	fake.stop()
	ended := waitFor[EndedEvent](t, p.Events())
	assertEqual(t, ended.ID, "load-1", "ended id")
}

func TestPlayerctlPlayBeforeReadyFails(t *testing.T) {
	fake := &fakePlayerctl{stuck: true}
	p := newTestPlayerctl(t, fake, time.Minute)

	p.Load("load-1", "/music/a.flac")
	p.Play()

	failed := waitFor[PlayFailedEvent](t, p.Events())
	assertEqual(t, failed.ID, "load-1", "failed id")
	if !errors.Is(failed.Err, ErrNoSource) {
		t.Errorf("expected ErrNoSource, got %v", failed.Err)
	}
}

func TestPlayerctlPlayRefused(t *testing.T) {
	fake := &fakePlayerctl{failPlay: true}
	p := newTestPlayerctl(t, fake, time.Second)

	p.Load("load-1", "/music/a.flac")
	waitFor[ReadyEvent](t, p.Events())
	p.Play()

	failed := waitFor[PlayFailedEvent](t, p.Events())
	if failed.Err == nil || errors.Is(failed.Err, ErrNoSource) {
		t.Errorf("expected the player's refusal, got %v", failed.Err)
	}
}

func TestPlayerctlLoadTimeout(t *testing.T) {
	fake := &fakePlayerctl{stuck: true}
	p := newTestPlayerctl(t, fake, 30*time.Millisecond)

	p.Load("load-1", "/music/a.flac")

	failed := waitFor[LoadFailedEvent](t, p.Events())
	assertEqual(t, failed.ID, "load-1", "failed id")
}

func TestPlayerctlSeekAndVolume(t *testing.T) {
	fake := &fakePlayerctl{}
	p := newTestPlayerctl(t, fake, time.Second)

	p.Seek(42.25)
	p.SetVolume(0.7)

	fake.waitCalled(t, "position 42.250")
	fake.waitCalled(t, "volume 0.70")

	calls := fake.snapshot()
	assertEqual(t, calls[len(calls)-2], "position 42.250", "commands run in order")
}

func TestPlayerctlHungPlayerDoesNotBlockCaller(t *testing.T) {
	fake := &fakePlayerctl{}
	p := newTestPlayerctl(t, fake, time.Second)
	p.cmdTimeout = 50 * time.Millisecond

	p.Load("load-1", "/music/a.flac")
	waitFor[ReadyEvent](t, p.Events())

	fake.mu.Lock()
	fake.hangPlay = true
	fake.mu.Unlock()

	start := time.Now()
	p.Play()
	p.Pause()
	p.SetVolume(0.5)
	if elapsed := time.Since(start); elapsed > 40*time.Millisecond {
		t.Errorf("transport commands blocked the caller for %v", elapsed)
	}

	failed := waitFor[PlayFailedEvent](t, p.Events())
	if !errors.Is(failed.Err, context.DeadlineExceeded) {
		t.Errorf("expected a timeout, got %v", failed.Err)
	}
	fake.waitCalled(t, "volume 0.50")
}

func TestPlayerctlPlayAfterEndRewinds(t *testing.T) {
	fake := &fakePlayerctl{}
	p := newTestPlayerctl(t, fake, time.Second)

	p.Load("load-1", "/music/a.flac")
	waitFor[ReadyEvent](t, p.Events())
	p.Play()
	waitFor[ProgressEvent](t, p.Events())

	fake.stop()
	waitFor[EndedEvent](t, p.Events())

	before := len(fake.snapshot())
	p.Play()
	waitFor[ProgressEvent](t, p.Events())

	var transport []string
	for _, c := range fake.snapshot()[before:] {
		if c == "position 0" || c == "play" {
			transport = append(transport, c)
		}
	}
	if len(transport) != 2 || transport[0] != "position 0" || transport[1] != "play" {
		t.Errorf("expected a rewind before play, got %v", transport)
	}
}
