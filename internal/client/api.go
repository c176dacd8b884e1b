// Package client talks to an mgpt server: HTTP calls for commands and a
// WebSocket receiver that keeps a local generation store up to date.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/manozcodes/mgpt/internal/models"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// ErrNotFound matches an APIError with status 404.
var ErrNotFound = errors.New("not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// ServerStatus is the /api/status payload.
type ServerStatus struct {
	Clients     int   `json:"clients"`
	Active      int   `json:"active"`
	Submissions int64 `json:"submissions"`
}

// API wraps HTTP calls to the mgpt server.
type API struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPI creates an API client for the server at baseURL.
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// BaseURL returns the server address.
func (c *API) BaseURL() string { return c.baseURL }

// WebSocketURL returns the event channel address.
func (c *API) WebSocketURL() (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// Submit sends a prompt and returns the new generation id.
func (c *API) Submit(ctx context.Context, prompt string) (string, error) {
	var resp struct {
		Success      bool   `json:"success"`
		GenerationID string `json:"generationId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/generate", map[string]string{"prompt": prompt}, &resp); err != nil {
		return "", err
	}
	return resp.GenerationID, nil
}

// Generation fetches the server's latest state of one generation.
func (c *API) Generation(ctx context.Context, id string) (*models.Generation, error) {
	var g models.Generation
	if err := c.do(ctx, http.MethodGet, "/api/generations/"+url.PathEscape(id), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Generations lists the server's journal, newest first.
func (c *API) Generations(ctx context.Context) ([]models.Generation, error) {
	var gens []models.Generation
	if err := c.do(ctx, http.MethodGet, "/api/generations", nil, &gens); err != nil {
		return nil, err
	}
	return gens, nil
}

// Cancel stops an active generation.
func (c *API) Cancel(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/generations/"+url.PathEscape(id)+"/cancel", nil, nil)
}

// Status fetches server counters.
func (c *API) Status(ctx context.Context) (ServerStatus, error) {
	var st ServerStatus
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &st)
	return st, err
}

// CheckHealth checks if the server is healthy.
func (c *API) CheckHealth(ctx context.Context) (bool, error) {
	var health struct {
		OK bool `json:"ok"`
	}
	err := c.do(ctx, http.MethodGet, "/health", nil, &health)
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return health.OK, nil
}

func (c *API) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
