package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/manozcodes/mgpt/internal/generation"
	"github.com/manozcodes/mgpt/internal/journal"
)

const (
	msgEmptyPrompt      = "Prompt cannot be empty"
	msgBusUnavailable   = "WebSocket server not initialized"
	msgInvalidBody      = "Invalid request body"
	msgInternal         = "Internal server error"
	msgNotFound         = "Generation not found"
	msgMethodNotAllowed = "Method not allowed"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Success      bool   `json:"success"`
	GenerationID string `json:"generationId"`
	Message      string `json:"message"`
}

// handleGenerate handles POST /api/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	id, err := s.deps.Service.Submit(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, generation.ErrEmptyPrompt):
		writeError(w, http.StatusBadRequest, msgEmptyPrompt)
	case errors.Is(err, generation.ErrBusUnavailable):
		writeError(w, http.StatusServiceUnavailable, msgBusUnavailable)
	case err != nil:
		log.Printf("Generate failed: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
	default:
		writeJSON(w, http.StatusOK, generateResponse{
			Success:      true,
			GenerationID: id,
			Message:      "Generation started",
		})
	}
}

// handleList handles GET /api/generations?limit=n
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	gens, err := s.deps.Journal.List(r.Context(), limit)
	if err != nil {
		log.Printf("List generations failed: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, gens)
}

// handleGet handles GET /api/generations/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	g, err := s.deps.Journal.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		log.Printf("Get generation failed: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleCancel handles POST /api/generations/{id}/cancel
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	err := s.deps.Service.Cancel(r.Context(), r.PathValue("id"))
	if errors.Is(err, generation.ErrNotFound) {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err != nil {
		log.Printf("Cancel failed: %v", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"clients":     s.clients(),
		"active":      s.deps.Service.ActiveCount(),
		"submissions": s.deps.Service.Submissions(),
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339)
	if err := s.deps.Journal.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":   false,
			"db":   err.Error(),
			"time": now,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"db":   "ok",
		"time": now,
	})
}

// handleWS handles the event channel upgrade at /ws
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.ws == nil {
		writeError(w, http.StatusServiceUnavailable, msgBusUnavailable)
		return
	}
	s.ws.ServeHTTP(w, r)
}
