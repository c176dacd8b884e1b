package store

import (
	"sync"
	"time"

	"github.com/manozcodes/mgpt/internal/models"
)

// DefaultVolume is the starting volume of a new player.
const DefaultVolume = 0.8

// Track is what the player can play.
type Track struct {
	ID       string
	Title    string
	Artist   string
	AudioURL string
	Image    string
	Duration time.Duration // zero when unknown
}

// TrackFromGeneration builds a playable track from a completed generation.
func TrackFromGeneration(g models.Generation) (Track, bool) {
	if g.Status != models.StatusCompleted || g.AudioURL == "" {
		return Track{}, false
	}
	return Track{
		ID:       g.ID,
		Title:    g.Title,
		AudioURL: g.AudioURL,
		Image:    g.Image,
	}, true
}

// PlayerState is a snapshot of the player.
type PlayerState struct {
	Track       *Track
	IsPlaying   bool
	CurrentTime time.Duration
	Volume      float64
}

// Player holds the now-playing track. At most one track is loaded at a time.
type Player struct {
	mu    sync.Mutex
	state PlayerState
	obs   observable[PlayerState]
}

// NewPlayer creates an idle player at DefaultVolume.
func NewPlayer() *Player {
	return &Player{state: PlayerState{Volume: DefaultVolume}}
}

// Subscribe registers fn to receive a snapshot after every change.
func (p *Player) Subscribe(fn func(PlayerState)) (unsubscribe func()) {
	return p.obs.subscribe(fn)
}

// State returns a snapshot.
func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// SetTrack replaces the current track and starts it from the beginning.
func (p *Player) SetTrack(t Track) {
	p.change(func(s *PlayerState) bool {
		s.Track = &t
		s.IsPlaying = true
		s.CurrentTime = 0
		return true
	})
}

// Play resumes the current track. No-op without a track.
func (p *Player) Play() {
	p.change(func(s *PlayerState) bool {
		if s.Track == nil || s.IsPlaying {
			return false
		}
		s.IsPlaying = true
		return true
	})
}

// Pause stops playback, keeping the position.
func (p *Player) Pause() {
	p.change(func(s *PlayerState) bool {
		if !s.IsPlaying {
			return false
		}
		s.IsPlaying = false
		return true
	})
}

// Toggle switches between Play and Pause.
func (p *Player) Toggle() {
	p.change(func(s *PlayerState) bool {
		if s.Track == nil {
			return false
		}
		s.IsPlaying = !s.IsPlaying
		return true
	})
}

// SetCurrentTime seeks, clamped to the track length when known.
func (p *Player) SetCurrentTime(d time.Duration) {
	p.change(func(s *PlayerState) bool {
		s.CurrentTime = p.clampTime(s, d)
		return true
	})
}

// Advance moves the position forward by d while playing. Playback stops
// at the end of a track with a known duration.
func (p *Player) Advance(d time.Duration) {
	p.change(func(s *PlayerState) bool {
		if !s.IsPlaying {
			return false
		}
		s.CurrentTime = p.clampTime(s, s.CurrentTime+d)
		if s.Track.Duration > 0 && s.CurrentTime >= s.Track.Duration {
			s.IsPlaying = false
		}
		return true
	})
}

// SetVolume sets the volume, clamped to [0, 1].
func (p *Player) SetVolume(v float64) {
	p.change(func(s *PlayerState) bool {
		s.Volume = min(max(v, 0), 1)
		return true
	})
}

func (p *Player) clampTime(s *PlayerState, d time.Duration) time.Duration {
	d = max(d, 0)
	if s.Track != nil && s.Track.Duration > 0 {
		d = min(d, s.Track.Duration)
	}
	return d
}

func (p *Player) snapshot() PlayerState {
	st := p.state
	if st.Track != nil {
		t := *st.Track
		st.Track = &t
	}
	return st
}

func (p *Player) change(fn func(*PlayerState) bool) {
	p.mu.Lock()
	changed := fn(&p.state)
	st := p.snapshot()
	p.mu.Unlock()

	if changed {
		p.obs.notify(st)
	}
}
