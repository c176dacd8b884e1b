package ollama

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
)

// Titler names finished tracks from their prompt.
type Titler struct {
	client  *Client
	timeout time.Duration

	mu        sync.Mutex
	lastTitle string // avoid back-to-back repeats
}

// NewTitler creates a titler. Each call gives up after timeout so a slow
// model only delays completion by that much.
func NewTitler(client *Client, timeout time.Duration) *Titler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Titler{client: client, timeout: timeout}
}

const titleSystemPrompt = `You are a track title generator for an AI music studio.

Given the listener's description of a song, output ONE evocative title of 2-4 words.

Rules:
- Atmospheric, not literal: do not repeat the description word for word
- Title Case
- No genre names, numbers, "Track 1" or "Untitled"
- No quotes, no punctuation at the end, no explanations

Output ONLY the title.

/no_think`

// Title returns a title for prompt, or empty string on failure (the caller
// falls back to its own pool).
func (t *Titler) Title(ctx context.Context, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	t.mu.Lock()
	last := t.lastTitle
	t.mu.Unlock()

	req := fmt.Sprintf("Description: %s", prompt)
	if last != "" {
		req += fmt.Sprintf("\nPrevious title (do NOT repeat this): %s", last)
	}

	title, err := t.client.Generate(ctx, titleSystemPrompt, req)
	if err != nil {
		log.Printf("Ollama title generation failed: %v", err)
		return ""
	}

	title = cleanTitle(title)
	if title == "" || len(title) > 60 || strings.Count(title, " ") > 5 {
		log.Printf("Ollama returned unusable title: %q", title)
		return ""
	}

	t.mu.Lock()
	t.lastTitle = title
	t.mu.Unlock()

	return title
}

// cleanTitle strips common LLM artifacts from output.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)

	// Strip thinking tags (thinking mode leakage)
	if idx := strings.Index(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}

	// Keep the first line only
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[:idx]
	}

	lower := strings.ToLower(s)
	for _, p := range []string{"title:", "here's a title:", "here is a title:"} {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}

	s = strings.Trim(s, "\"'*` ")
	s = strings.TrimRight(s, ".!")
	return strings.TrimSpace(s)
}
