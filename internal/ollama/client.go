// Package ollama generates track titles with a local Ollama model.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultModel is used when NewClient gets no model name.
const DefaultModel = "llama3.2"

// Titles are a handful of words; a warm model answers in well under a second.
const (
	titleTemperature = 0.8
	titleMaxTokens   = 24
	requestTimeout   = 30 * time.Second // first call loads the model
)

// Client is a minimal Ollama /api/generate client tuned for short titles.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates an Ollama client for model, or DefaultModel when empty.
func NewClient(baseURL, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Available reports whether the Ollama server answers.
func (c *Client) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Generate runs one non-streaming completion capped to title length.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	data, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		System: system,
		Options: generateOptions{
			Temperature: titleTemperature,
			NumPredict:  titleMaxTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama %s: %w", c.model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ollama %s: status %d: %s", c.model, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}

// Model returns the model name requests are sent to.
func (c *Client) Model() string {
	return c.model
}
