// Package api serves the mgpt HTTP surface: prompt submission, generation
// queries, the event channel and placeholder media.
package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/manozcodes/mgpt/internal/audio"
	"github.com/manozcodes/mgpt/internal/generation"
	"github.com/manozcodes/mgpt/internal/models"
	"github.com/manozcodes/mgpt/internal/stream"
)

//go:embed cover.svg
var coverSVG []byte

// Journal is the read side of the generation journal.
type Journal interface {
	Get(ctx context.Context, id string) (*models.Generation, error)
	List(ctx context.Context, limit int) ([]models.Generation, error)
	Ping(ctx context.Context) error
}

// Deps are the server's collaborators. Broadcaster may be nil, in which
// case the event channel and submissions report the server as not ready.
type Deps struct {
	Service     *generation.Service
	Journal     Journal
	Broadcaster *stream.Broadcaster
	Synth       *audio.Synth
}

// Server provides the HTTP API.
type Server struct {
	deps    Deps
	addr    string
	handler http.Handler
	ws      *stream.WSHandler
	webrtc  *stream.WebRTCHandler
	server  *http.Server
}

// NewServer creates a server listening on addr.
func NewServer(addr string, deps Deps) *Server {
	if deps.Synth == nil {
		deps.Synth = audio.NewSynth(0)
	}
	s := &Server{deps: deps, addr: addr}
	tracks := &Tracks{journal: deps.Journal, synth: deps.Synth}
	s.webrtc = stream.NewWebRTCHandler(tracks)
	if deps.Broadcaster != nil {
		s.ws = stream.NewWSHandler(deps.Broadcaster)
	}

	mux := http.NewServeMux()

	// Generation endpoints
	mux.HandleFunc("/api/generate", s.handleGenerate)
	mux.HandleFunc("/api/generations", s.handleList)
	mux.HandleFunc("/api/generations/{id}", s.handleGet)
	mux.HandleFunc("/api/generations/{id}/cancel", s.handleCancel)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)

	// Event channel
	mux.HandleFunc("/ws", s.handleWS)

	// Placeholder media
	mux.Handle("/audio/", stream.NewAudioHandler(tracks))
	mux.Handle("/offer", s.webrtc)
	mux.HandleFunc("/cover.svg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Write(coverSVG)
	})

	s.handler = mux
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown. Returns nil after a graceful shutdown.
func (s *Server) Start() error {
	log.Printf("mgpt listening on %s", s.addr)
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// clients counts event channel and WebRTC listeners.
func (s *Server) clients() int {
	n := s.webrtc.PeerCount()
	if s.deps.Broadcaster != nil {
		n += s.deps.Broadcaster.ListenerCount()
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
