package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/manozcodes/mgpt/internal/audio"
	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/generation"
	"github.com/manozcodes/mgpt/internal/journal"
	"github.com/manozcodes/mgpt/internal/models"
	"github.com/manozcodes/mgpt/internal/stream"
)

type testEnv struct {
	srv     *httptest.Server
	svc     *generation.Service
	journal *journal.Journal
	bus     *stream.Broadcaster
}

func fastTiming() generation.Timing {
	return generation.Timing{
		Tick:          time.Millisecond,
		Steps:         10,
		PauseSteps:    []int{3},
		CompleteDelay: 2 * time.Millisecond,
		StartDelay:    2 * time.Millisecond,
		FailDelay:     2 * time.Millisecond,
	}
}

// newTestEnv wires a server the way serve does. withBus=false leaves the
// event bus uninitialized.
func newTestEnv(t *testing.T, cfg generation.ServiceConfig, withBus bool) *testEnv {
	t.Helper()
	j, err := journal.Open("")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}

	env := &testEnv{journal: j}
	var sink events.Sink
	if withBus {
		env.bus = stream.NewBroadcaster()
		sink = events.Sinks{env.bus, j}
	}
	if cfg.Sim.Timing.Steps == 0 {
		cfg.Sim.Timing = fastTiming()
	}

	ctx, cancel := context.WithCancel(context.Background())
	env.svc = generation.NewService(ctx, sink, cfg)

	s := NewServer(":0", Deps{
		Service:     env.svc,
		Journal:     j,
		Broadcaster: env.bus,
		Synth:       audio.NewSynth(200 * time.Millisecond),
	})
	env.srv = httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		env.srv.Close()
		cancel()
		env.svc.Wait()
		j.Close()
	})
	return env
}

func (e *testEnv) post(t *testing.T, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(e.srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var m map[string]any
	json.NewDecoder(resp.Body).Decode(&m)
	return m
}

// waitStatus polls the journal until id reaches want.
func (e *testEnv) waitStatus(t *testing.T, id string, want models.Status) *models.Generation {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		g, err := e.journal.Get(context.Background(), id)
		if err == nil && g.Status == want {
			return g
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s to be %s (last %+v, %v)", id, want, g, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGenerateLifecycle(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{Policy: generation.NeverFail}, true)

	resp, body := env.post(t, "/api/generate", `{"prompt":"lofi beats"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %v", resp.StatusCode, body)
	}
	if body["success"] != true || body["message"] == "" {
		t.Errorf("body = %v", body)
	}
	id, _ := body["generationId"].(string)
	if !strings.HasPrefix(id, "gen_") {
		t.Fatalf("generationId = %q", id)
	}

	g := env.waitStatus(t, id, models.StatusCompleted)
	if g.Progress != 100 || g.Description != "lofi beats" || g.AudioURL != "/audio/"+id+".ogg" {
		t.Errorf("journaled = %+v", g)
	}

	// the journal is served over HTTP too
	resp = env.get(t, "/api/generations/"+id)
	got := decodeBody(t, resp)
	if resp.StatusCode != http.StatusOK || got["status"] != "completed" || got["audioUrl"] != g.AudioURL {
		t.Errorf("GET generation = %d %v", resp.StatusCode, got)
	}

	resp = env.get(t, g.AudioURL)
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !bytes.HasPrefix(data, []byte("OggS")) {
		t.Errorf("audio = %d, %d bytes", resp.StatusCode, len(data))
	}
}

func TestGenerateErrors(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{}, true)

	tests := []struct {
		name string
		body string
		want int
		msg  string
	}{
		{"empty prompt", `{"prompt":""}`, http.StatusBadRequest, "Prompt cannot be empty"},
		{"blank prompt", `{"prompt":"   "}`, http.StatusBadRequest, "Prompt cannot be empty"},
		{"missing prompt", `{}`, http.StatusBadRequest, "Prompt cannot be empty"},
		{"malformed", `{"prompt":`, http.StatusBadRequest, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.post(t, "/api/generate", tt.body)
			if resp.StatusCode != tt.want || body["error"] != tt.msg {
				t.Errorf("got %d %v, want %d %q", resp.StatusCode, body, tt.want, tt.msg)
			}
		})
	}

	resp := env.get(t, "/api/generate")
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/generate = %d, want 405", resp.StatusCode)
	}
	resp.Body.Close()

	gens, _ := env.journal.List(context.Background(), 0)
	if len(gens) != 0 {
		t.Errorf("rejected prompts created %d records", len(gens))
	}
}

func TestGenerateWithoutBus(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{}, false)

	resp, body := env.post(t, "/api/generate", `{"prompt":"lofi beats"}`)
	if resp.StatusCode != http.StatusServiceUnavailable || body["error"] != "WebSocket server not initialized" {
		t.Errorf("got %d %v", resp.StatusCode, body)
	}

	resp = env.get(t, "/ws")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/ws without bus = %d, want 503", resp.StatusCode)
	}
	resp.Body.Close()
}

type brokenCounter struct{}

func (brokenCounter) Next(context.Context) (int64, error) {
	return 0, errors.New("redis down")
}

func TestGenerateInternalError(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{Counter: brokenCounter{}}, true)

	resp, body := env.post(t, "/api/generate", `{"prompt":"lofi beats"}`)
	if resp.StatusCode != http.StatusInternalServerError || body["error"] != "Internal server error" {
		t.Errorf("got %d %v", resp.StatusCode, body)
	}
}

func TestThirdSubmissionFails(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{}, true)

	var ids []string
	for _, p := range []string{"a", "b", "x"} {
		_, body := env.post(t, "/api/generate", `{"prompt":"`+p+`"}`)
		ids = append(ids, body["generationId"].(string))
	}

	g := env.waitStatus(t, ids[2], models.StatusFailed)
	if g.Error != generation.FailError || g.Message != generation.FailMessage || g.Progress != 0 {
		t.Errorf("failed record = %+v", g)
	}

	// failed generations have no track
	resp := env.get(t, "/audio/"+ids[2]+".ogg")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("audio for failed = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGetAndListGenerations(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{Policy: generation.NeverFail}, true)

	resp := env.get(t, "/api/generations/nope")
	body := decodeBody(t, resp)
	if resp.StatusCode != http.StatusNotFound || body["error"] != "Generation not found" {
		t.Errorf("unknown id = %d %v", resp.StatusCode, body)
	}

	for _, p := range []string{"first", "second"} {
		env.post(t, "/api/generate", `{"prompt":"`+p+`"}`)
		time.Sleep(2 * time.Millisecond)
	}

	resp = env.get(t, "/api/generations")
	var gens []models.Generation
	json.NewDecoder(resp.Body).Decode(&gens)
	resp.Body.Close()
	if len(gens) != 2 || gens[0].Prompt != "second" {
		t.Errorf("list = %+v", gens)
	}

	resp = env.get(t, "/api/generations?limit=1")
	gens = nil
	json.NewDecoder(resp.Body).Decode(&gens)
	resp.Body.Close()
	if len(gens) != 1 {
		t.Errorf("limit=1 returned %d", len(gens))
	}

	resp = env.get(t, "/api/generations?limit=x")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCancelGeneration(t *testing.T) {
	timing := fastTiming()
	timing.Tick = 50 * time.Millisecond
	env := newTestEnv(t, generation.ServiceConfig{
		Policy: generation.NeverFail,
		Sim:    generation.SimulatorConfig{Timing: timing},
	}, true)

	_, body := env.post(t, "/api/generate", `{"prompt":"slow"}`)
	id := body["generationId"].(string)

	resp, body := env.post(t, "/api/generations/"+id+"/cancel", "")
	if resp.StatusCode != http.StatusOK || body["success"] != true {
		t.Fatalf("cancel = %d %v", resp.StatusCode, body)
	}

	g := env.waitStatus(t, id, models.StatusFailed)
	if g.Error != generation.CancelError {
		t.Errorf("error = %q, want %q", g.Error, generation.CancelError)
	}

	resp, body = env.post(t, "/api/generations/"+id+"/cancel", "")
	if resp.StatusCode != http.StatusNotFound || body["error"] != "Generation not found" {
		t.Errorf("second cancel = %d %v", resp.StatusCode, body)
	}
}

func TestStatusAndHealth(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{Policy: generation.NeverFail}, true)

	env.post(t, "/api/generate", `{"prompt":"one"}`)

	resp := env.get(t, "/api/status")
	body := decodeBody(t, resp)
	if body["submissions"] != float64(1) || body["clients"] != float64(0) {
		t.Errorf("status = %v", body)
	}

	resp = env.get(t, "/health")
	body = decodeBody(t, resp)
	if resp.StatusCode != http.StatusOK || body["ok"] != true || body["db"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}

	env.journal.Close()
	resp = env.get(t, "/health")
	body = decodeBody(t, resp)
	if resp.StatusCode != http.StatusServiceUnavailable || body["ok"] != false {
		t.Errorf("health with closed db = %d %v", resp.StatusCode, body)
	}
}

func TestCover(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{}, true)

	resp := env.get(t, "/cover.svg")
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/svg+xml" {
		t.Errorf("cover = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.Contains(data, []byte("<svg")) {
		t.Error("cover is not an svg")
	}
}

func TestEventChannelStartedFirst(t *testing.T) {
	env := newTestEnv(t, generation.ServiceConfig{Policy: generation.NeverFail}, true)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.bus.ListenerCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("listener never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	_, body := env.post(t, "/api/generate", `{"prompt":"lofi beats"}`)
	id := body["generationId"].(string)

	var names []string
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (got %v)", err, names)
		}
		ev, err := events.Decode(data)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if ev.GenerationID() != id {
			continue
		}
		names = append(names, ev.EventName())
		if ev.EventName() == events.NameCompleted {
			break
		}
	}

	if names[0] != events.NameStarted {
		t.Errorf("first event = %s, want %s", names[0], events.NameStarted)
	}
	if len(names) != 12 {
		t.Errorf("events = %d (%v), want started + 10 progress + completed", len(names), names)
	}
}
