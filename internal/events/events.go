// Package events defines the generation lifecycle events and their wire format.
package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manozcodes/mgpt/internal/models"
)

// Event names as they appear on the wire.
const (
	NameStarted   = "GENERATION_STARTED"
	NameProgress  = "GENERATION_PROGRESS"
	NameCompleted = "GENERATION_COMPLETE"
	NameFailed    = "GENERATION_FAILED"
)

// ErrUnknownEvent is returned by Decode for an unrecognized event name.
var ErrUnknownEvent = errors.New("unknown event")

// Event is one of Started, Progress, Completed or Failed.
type Event interface {
	EventName() string
	GenerationID() string
}

// Started is emitted once, synchronously, when a prompt is accepted.
type Started struct {
	ID        string        `json:"generationId"`
	Prompt    string        `json:"prompt"`
	Status    models.Status `json:"status"`
	Progress  int           `json:"progress"`
	CreatedAt int64         `json:"createdAt"`
}

// Progress reports the rounded cumulative percentage.
type Progress struct {
	ID       string        `json:"generationId"`
	Status   models.Status `json:"status"`
	Progress int           `json:"progress"`
}

// Completed carries the finished track.
type Completed struct {
	ID          string        `json:"generationId"`
	Status      models.Status `json:"status"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Image       string        `json:"image"`
	AudioURL    string        `json:"audioUrl"`
}

// Failed carries a fixed, human-readable failure.
type Failed struct {
	ID      string        `json:"generationId"`
	Status  models.Status `json:"status"`
	Error   string        `json:"error"`
	Message string        `json:"message"`
}

func (Started) EventName() string   { return NameStarted }
func (Progress) EventName() string  { return NameProgress }
func (Completed) EventName() string { return NameCompleted }
func (Failed) EventName() string    { return NameFailed }

func (e Started) GenerationID() string   { return e.ID }
func (e Progress) GenerationID() string  { return e.ID }
func (e Completed) GenerationID() string { return e.ID }
func (e Failed) GenerationID() string    { return e.ID }

// Envelope is the frame sent over the event channel.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Encode wraps ev in an Envelope and marshals it.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.EventName(), err)
	}
	return json.Marshal(Envelope{Event: ev.EventName(), Data: data})
}

// Decode parses an Envelope frame into its concrete event.
func Decode(b []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var (
		ev  Event
		err error
	)
	switch env.Event {
	case NameStarted:
		var e Started
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case NameProgress:
		var e Progress
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case NameCompleted:
		var e Completed
		err = json.Unmarshal(env.Data, &e)
		ev = e
	case NameFailed:
		var e Failed
		err = json.Unmarshal(env.Data, &e)
		ev = e
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", env.Event, err)
	}
	return ev, nil
}
