package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	"go.uber.org/zap"
)

// BeepPlayer plays tracks on the local audio device through beep's speaker.
// Lock order is p.mu before the speaker lock; the end-of-track callback
// runs under the speaker lock and must not take p.mu.
type BeepPlayer struct {
	queue       *eventQueue
	sampleRate  beep.SampleRate
	client      *http.Client
	loadTimeout time.Duration
	log         *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc

	mu sync.Mutex
	// latest requested load; older loads finishing late are discarded
	pending string
	loadID  string
	stream  beep.StreamSeekCloser
	format  beep.Format
	ctrl    *beep.Ctrl
	volume  *effects.Volume
	gain    float64
	// set from the audio goroutine once the mounted sequence has played out
	drained atomic.Bool
}

var _ MediaPlayer = (*BeepPlayer)(nil)

// NewBeepPlayer initializes the speaker and starts the progress reporter
func NewBeepPlayer(cfg PlaybackConfig, progressEvery time.Duration, log *zap.Logger) (*BeepPlayer, error) {
	sr := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(time.Duration(cfg.BufferMs)*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}

	p := newBeepPlayer(sr, time.Duration(cfg.LoadTimeoutS)*time.Second, log)
	go p.reportProgress(progressEvery)
	return p, nil
}

func newBeepPlayer(sr beep.SampleRate, loadTimeout time.Duration, log *zap.Logger) *BeepPlayer {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &BeepPlayer{
		queue:       newEventQueue(64),
		sampleRate:  sr,
		client:      &http.Client{},
		loadTimeout: loadTimeout,
		log:         log.Named("beep"),
		ctx:         ctx,
		cancel:      cancel,
		gain:        1,
	}
}

func (p *BeepPlayer) Events() <-chan MediaEvent { return p.queue.events() }

// Load stops the current source right away, then opens and decodes the new
// one in the background and swaps it in paused
func (p *BeepPlayer) Load(loadID, locator string) {
	p.mu.Lock()
	p.pending = loadID
	if err := p.release(); err != nil {
		p.log.Debug("closing previous source", zap.Error(err))
	}
	p.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(p.ctx, p.loadTimeout)
		defer cancel()

		stream, format, err := openAudio(ctx, p.client, locator)
		if err != nil {
			p.log.Warn("load failed", zap.String("load_id", loadID), zap.String("url", locator), zap.Error(err))
			p.queue.emit(LoadFailedEvent{ID: loadID, Err: err})
			return
		}

		length := format.SampleRate.D(stream.Len()).Seconds()
		if !p.adopt(loadID, stream, format) {
			stream.Close()
			return
		}

		p.log.Debug("source ready", zap.String("load_id", loadID), zap.Float64("duration", length))
		p.queue.emit(ReadyEvent{ID: loadID})
		p.queue.emit(MetadataEvent{ID: loadID, Duration: length})
	}()
}

// adopt replaces the current source with stream unless a newer load was requested
func (p *BeepPlayer) adopt(loadID string, stream beep.StreamSeekCloser, format beep.Format) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending != loadID {
		p.log.Debug("discarding superseded load", zap.String("load_id", loadID))
		return false
	}

	if err := p.release(); err != nil {
		p.log.Debug("closing previous source", zap.Error(err))
	}

	p.loadID = loadID
	p.stream = stream
	p.format = format
	p.mount(true)
	return true
}

// mount builds the effect chain over p.stream and hands it to the speaker.
// p.mu must be held.
func (p *BeepPlayer) mount(paused bool) {
	vol := &effects.Volume{
		Streamer: beep.Resample(4, p.format.SampleRate, p.sampleRate, p.stream),
		Base:     2,
	}
	applyGain(vol, p.gain)
	ctrl := &beep.Ctrl{Streamer: vol, Paused: paused}

	p.volume = vol
	p.ctrl = ctrl
	p.drained.Store(false)

	id := p.loadID
	speaker.Play(beep.Seq(ctrl, beep.Callback(func() { p.finished(id) })))
}

// finished runs on the audio goroutine with the speaker locked. The mixer
// drops the sequence after this, so a later Play has to mount it again.
func (p *BeepPlayer) finished(loadID string) {
	p.drained.Store(true)
	go p.queue.emit(EndedEvent{ID: loadID})
}

// release stops and closes the current source. p.mu must be held.
func (p *BeepPlayer) release() error {
	speaker.Clear()
	var err error
	if p.stream != nil {
		err = p.stream.Close()
	}
	p.loadID = ""
	p.stream = nil
	p.ctrl = nil
	p.volume = nil
	return err
}

// restart mounts a played-out source again, rewinding it unless it was
// seeked after it ended. p.mu must be held.
func (p *BeepPlayer) restart() {
	if p.stream.Position() >= p.stream.Len()-1 {
		if err := p.stream.Seek(0); err != nil {
			p.log.Warn("rewind failed", zap.String("load_id", p.loadID), zap.Error(err))
		}
	}
	p.mount(false)
}

// Play resumes the adopted source, or starts it over once it has ended.
// Without a source the refusal comes back as a PlayFailedEvent.
func (p *BeepPlayer) Play() {
	p.mu.Lock()
	id := p.pending
	adopted := p.ctrl != nil && p.loadID == p.pending
	switch {
	case adopted && p.drained.Load():
		p.restart()
	case adopted:
		speaker.Lock()
		p.ctrl.Paused = false
		speaker.Unlock()
	}
	p.mu.Unlock()

	if !adopted {
		p.queue.emit(PlayFailedEvent{ID: id, Err: ErrNoSource})
	}
}

func (p *BeepPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
}

// Seek moves the source to seconds, clamped to the decoded length
func (p *BeepPlayer) Seek(seconds float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return
	}

	n := p.format.SampleRate.N(time.Duration(seconds * float64(time.Second)))
	if n < 0 {
		n = 0
	}
	if last := p.stream.Len() - 1; n > last {
		n = last
	}

	speaker.Lock()
	err := p.stream.Seek(n)
	speaker.Unlock()
	if err != nil {
		p.log.Warn("seek failed", zap.Float64("seconds", seconds), zap.Error(err))
	}
}

func (p *BeepPlayer) SetVolume(normalized float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gain = normalized
	if p.volume == nil {
		return
	}
	speaker.Lock()
	applyGain(p.volume, normalized)
	speaker.Unlock()
}

// position reports the current playing position, or false while paused or unloaded
func (p *BeepPlayer) position() (string, float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctrl == nil || p.loadID != p.pending {
		return "", 0, false
	}
	speaker.Lock()
	defer speaker.Unlock()
	if p.ctrl.Paused {
		return "", 0, false
	}
	return p.loadID, p.format.SampleRate.D(p.stream.Position()).Seconds(), true
}

func (p *BeepPlayer) reportProgress(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if id, pos, ok := p.position(); ok {
				p.queue.offer(ProgressEvent{ID: id, Position: pos})
			}
		}
	}
}

func (p *BeepPlayer) Close() error {
	p.cancel()
	p.queue.shutdown()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.release()
}

// applyGain maps a normalized 0-1 level onto a base-2 volume effect
func applyGain(v *effects.Volume, normalized float64) {
	if normalized <= 0 {
		v.Silent = true
		return
	}
	if normalized > 1 {
		normalized = 1
	}
	v.Silent = false
	v.Volume = math.Log2(normalized)
}

// memSource is a fully buffered remote source; the decoders need Seek
type memSource struct{ *bytes.Reader }

func (memSource) Close() error { return nil }

// readSource opens a local path (bare or file://) or downloads an http(s) URL
func readSource(ctx context.Context, client *http.Client, locator string) (io.ReadCloser, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("download audio: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("audio download failed with status: %d", resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read audio data: %w", err)
		}
		return memSource{bytes.NewReader(data)}, nil
	}

	f, err := os.Open(strings.TrimPrefix(locator, "file://"))
	if err != nil {
		return nil, fmt.Errorf("open audio file: %w", err)
	}
	return f, nil
}

// audioExt returns the lowercase extension of the locator's path, ignoring any query
func audioExt(locator string) string {
	p := locator
	if u, err := url.Parse(locator); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

// decodeAudio picks a decoder by extension; unknown extensions are tried as mp3
func decodeAudio(rc io.ReadCloser, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext {
	case ".wav":
		return wav.Decode(rc)
	case ".flac":
		return flac.Decode(rc)
	case ".ogg", ".oga":
		return vorbis.Decode(rc)
	default:
		return mp3.Decode(rc)
	}
}

func openAudio(ctx context.Context, client *http.Client, locator string) (beep.StreamSeekCloser, beep.Format, error) {
	rc, err := readSource(ctx, client, locator)
	if err != nil {
		return nil, beep.Format{}, err
	}
	stream, format, err := decodeAudio(rc, audioExt(locator))
	if err != nil {
		rc.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", audioExt(locator), err)
	}
	return stream, format, nil
}
