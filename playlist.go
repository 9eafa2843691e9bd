package main

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyPlaylist    = errors.New("playlist is empty")
	ErrDuplicateTrackID = errors.New("duplicate track id")
)

// Track is one playable playlist entry. Duration is display metadata only;
// the media resource's reported length is the authority for seeking.
type Track struct {
	ID       int    `mapstructure:"id"`
	Title    string `mapstructure:"title"`
	Artist   string `mapstructure:"artist"`
	Duration string `mapstructure:"duration"`
	AudioURL string `mapstructure:"audio_url"`
	Cover    string `mapstructure:"cover"`
}

// Playlist is a fixed, ordered sequence of tracks. It is built once at
// startup and never changes afterwards.
type Playlist struct {
	tracks []Track
	index  map[int]int
}

// NewPlaylist validates tracks and returns an immutable playlist over a copy of them
func NewPlaylist(tracks []Track) (Playlist, error) {
	if len(tracks) == 0 {
		return Playlist{}, ErrEmptyPlaylist
	}

	p := Playlist{
		tracks: make([]Track, len(tracks)),
		index:  make(map[int]int, len(tracks)),
	}
	copy(p.tracks, tracks)

	for i, t := range p.tracks {
		if _, dup := p.index[t.ID]; dup {
			return Playlist{}, fmt.Errorf("%w: %d", ErrDuplicateTrackID, t.ID)
		}
		if t.AudioURL == "" {
			return Playlist{}, fmt.Errorf("track %d (%q) has no audio_url", t.ID, t.Title)
		}
		p.index[t.ID] = i
	}

	return p, nil
}

func (p Playlist) Len() int { return len(p.tracks) }

// At returns the track at position i. Callers keep i within [0, Len()).
func (p Playlist) At(i int) Track { return p.tracks[i] }

// IndexOf returns the position of the track with the given id
func (p Playlist) IndexOf(id int) (int, bool) {
	i, ok := p.index[id]
	return i, ok
}

// Contains reports whether t is exactly one of the playlist's entries
func (p Playlist) Contains(t Track) bool {
	i, ok := p.index[t.ID]
	return ok && p.tracks[i] == t
}

// Tracks returns a copy of the entries in playlist order
func (p Playlist) Tracks() []Track {
	out := make([]Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}

// Wrap maps any integer index onto the playlist, wrapping at both ends
func (p Playlist) Wrap(i int) int {
	n := len(p.tracks)
	return ((i % n) + n) % n
}

var defaultTracks = []Track{
	{ID: 1, Title: "Neon Dreams", Artist: "Synthwave Collective", Duration: "3:45", AudioURL: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-1.mp3"},
	{ID: 2, Title: "Digital Horizon", Artist: "Electric Minds", Duration: "4:12", AudioURL: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-2.mp3"},
	{ID: 3, Title: "Cosmic Waves", Artist: "Astro Beats", Duration: "3:58", AudioURL: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-3.mp3"},
	{ID: 4, Title: "Midnight Circuit", Artist: "Cyber Dreams", Duration: "4:30", AudioURL: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-4.mp3"},
	{ID: 5, Title: "Binary Love", Artist: "Data Romance", Duration: "3:22", AudioURL: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-5.mp3"},
	{ID: 6, Title: "Quantum Pulse", Artist: "Future Sound", Duration: "4:05", AudioURL: "https://www.soundhelix.com/examples/mp3/SoundHelix-Song-6.mp3"},
}
