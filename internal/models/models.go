// Package models defines the generation record shared by the server and its clients.
package models

// Status is the lifecycle state of a generation.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further events are expected for the status.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Generation is one user-submitted music creation request.
type Generation struct {
	ID        string `json:"id" db:"id"`
	Prompt    string `json:"prompt" db:"prompt"`
	Status    Status `json:"status" db:"status"`
	Progress  int    `json:"progress" db:"progress"`
	CreatedAt int64  `json:"createdAt" db:"created_at"` // epoch ms

	// Set on completion.
	Title       string `json:"title,omitempty" db:"title"`
	Description string `json:"description,omitempty" db:"description"`
	Image       string `json:"image,omitempty" db:"image"`
	AudioURL    string `json:"audioUrl,omitempty" db:"audio_url"`

	// Set on failure.
	Error   string `json:"error,omitempty" db:"error"`
	Message string `json:"message,omitempty" db:"message"`
}
