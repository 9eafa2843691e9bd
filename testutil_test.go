package main

import (
	"fmt"
	"image"
	"image/color"
	"testing"
)

// generateTestImage creates a simple test image with specified dimensions and colors
func generateTestImage(width, height int, fillColor color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fillColor)
		}
	}
	return img
}

// assertNoError is a test helper that fails the test if an error occurred
func assertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

// assertEqual is a generic test helper for comparing values
func assertEqual[T comparable](t *testing.T, got, want T, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}

// isValidHexColor checks if a string is a valid hex color (e.g., "#RRGGBB")
func isValidHexColor(color string) bool {
	return len(color) == 7 && isValidColor(color)
}

// fakePlayer records every command the controller issues. Events are fed
// to the controller by the tests themselves.
type fakePlayer struct {
	commands []string
	loads    []string
	volume   float64
	seekedTo float64
	events   chan MediaEvent
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{events: make(chan MediaEvent, 16)}
}

func (f *fakePlayer) Load(loadID, url string) {
	f.commands = append(f.commands, "load "+url)
	f.loads = append(f.loads, loadID)
}
func (f *fakePlayer) Play()  { f.commands = append(f.commands, "play") }
func (f *fakePlayer) Pause() { f.commands = append(f.commands, "pause") }
func (f *fakePlayer) Seek(seconds float64) {
	f.seekedTo = seconds
	f.commands = append(f.commands, fmt.Sprintf("seek %g", seconds))
}
func (f *fakePlayer) SetVolume(v float64) {
	f.volume = v
	f.commands = append(f.commands, fmt.Sprintf("volume %g", v))
}
func (f *fakePlayer) Events() <-chan MediaEvent { return f.events }
func (f *fakePlayer) Close() error              { return nil }

// lastLoad is the id of the most recent Load
func (f *fakePlayer) lastLoad() string {
	if len(f.loads) == 0 {
		return ""
	}
	return f.loads[len(f.loads)-1]
}

// since returns the commands issued after the first n
func (f *fakePlayer) since(n int) []string {
	return append([]string(nil), f.commands[n:]...)
}

// sequentialIDs returns a load id generator yielding load-1, load-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("load-%d", n)
	}
}

func testPlaylist(t *testing.T) Playlist {
	t.Helper()
	p, err := NewPlaylist(defaultTracks)
	assertNoError(t, err)
	return p
}

// newTestController mounts a controller over the six default tracks
func newTestController(t *testing.T, autoAdvance bool) (*Controller, *fakePlayer) {
	t.Helper()
	fp := newFakePlayer()
	c := NewController(testPlaylist(t), fp, ControllerOptions{
		Volume:      70,
		AutoAdvance: autoAdvance,
		NewLoadID:   sequentialIDs(),
	})
	return c, fp
}

// readyCurrent reports the current load ready with the given length
func readyCurrent(c *Controller, fp *fakePlayer, length float64) {
	c.HandleEvent(ReadyEvent{ID: fp.lastLoad()})
	c.HandleEvent(MetadataEvent{ID: fp.lastLoad(), Duration: length})
}
