package api

import (
	"context"
	"errors"

	"github.com/manozcodes/mgpt/internal/audio"
	"github.com/manozcodes/mgpt/internal/journal"
	"github.com/manozcodes/mgpt/internal/models"
	"github.com/manozcodes/mgpt/internal/stream"
)

// Tracks resolves completed generations to their placeholder audio.
type Tracks struct {
	journal Journal
	synth   *audio.Synth
}

// Samples renders the track for a completed generation.
func (t *Tracks) Samples(ctx context.Context, id string) ([]int16, error) {
	g, err := t.journal.Get(ctx, id)
	if errors.Is(err, journal.ErrNotFound) {
		return nil, stream.ErrTrackNotFound
	}
	if err != nil {
		return nil, err
	}
	if g.Status != models.StatusCompleted {
		return nil, stream.ErrTrackNotFound
	}
	return t.synth.Render(id), nil
}
