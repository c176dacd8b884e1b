package stream

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/manozcodes/mgpt/internal/audio"
)

// ErrTrackNotFound is returned by a TrackSource for ids with no playable track.
var ErrTrackNotFound = errors.New("track not found")

// TrackSource resolves a generation id to PCM samples.
type TrackSource interface {
	Samples(ctx context.Context, id string) ([]int16, error)
}

// AudioHandler serves a generation's placeholder track as Ogg/Opus at
// /audio/{id}.ogg.
type AudioHandler struct {
	source TrackSource
}

// NewAudioHandler creates an audio download handler.
func NewAudioHandler(source TrackSource) *AudioHandler {
	return &AudioHandler{source: source}
}

func (h *AudioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}

	name := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	id, ok := strings.CutSuffix(name, ".ogg")
	if !ok || id == "" {
		http.NotFound(w, r)
		return
	}

	samples, err := h.source.Samples(r.Context(), id)
	if errors.Is(err, ErrTrackNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		log.Printf("Audio: load %s: %v", id, err)
		http.Error(w, "audio unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/ogg")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodHead {
		return
	}

	if err := audio.EncodeOgg(w, samples); err != nil {
		log.Printf("Audio: encode %s: %v", id, err)
	}
}
