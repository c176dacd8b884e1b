package store

import (
	"slices"

	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/models"
)

// Reduce folds one lifecycle event into a generation list and returns the
// result. The input slice is never modified; when the event changes
// nothing the input is returned as is.
//
// A repeated started is ignored, events for unknown ids are ignored,
// progress never decreases or exceeds 100, and nothing changes a
// generation after its terminal event.
func Reduce(gens []models.Generation, ev events.Event) []models.Generation {
	if e, ok := ev.(events.Started); ok {
		if indexOf(gens, e.ID) >= 0 {
			return gens
		}
		g := models.Generation{
			ID:        e.ID,
			Prompt:    e.Prompt,
			Status:    e.Status,
			Progress:  clampProgress(e.Progress),
			CreatedAt: e.CreatedAt,
		}
		if g.Status == "" {
			g.Status = models.StatusPending
		}
		return append([]models.Generation{g}, gens...)
	}

	i := indexOf(gens, ev.GenerationID())
	if i < 0 || gens[i].Status.Terminal() {
		return gens
	}
	g := gens[i]

	switch e := ev.(type) {
	case events.Progress:
		p := clampProgress(e.Progress)
		if g.Status == models.StatusGenerating && p <= g.Progress {
			return gens
		}
		g.Status = models.StatusGenerating
		g.Progress = max(g.Progress, p)
	case events.Completed:
		g.Status = models.StatusCompleted
		g.Progress = 100
		g.Title = e.Title
		g.Description = e.Description
		g.Image = e.Image
		g.AudioURL = e.AudioURL
	case events.Failed:
		g.Status = models.StatusFailed
		g.Error = e.Error
		g.Message = e.Message
	default:
		return gens
	}

	out := slices.Clone(gens)
	out[i] = g
	return out
}

// Sync merges a server-side snapshot into the list, following the same
// rules as the events it summarizes.
func Sync(gens []models.Generation, remote models.Generation) []models.Generation {
	i := indexOf(gens, remote.ID)
	if i < 0 || gens[i].Status.Terminal() {
		return gens
	}
	g := gens[i]

	switch remote.Status {
	case models.StatusCompleted:
		g = remote
		g.Progress = 100
	case models.StatusFailed:
		g.Status = models.StatusFailed
		g.Error = remote.Error
		g.Message = remote.Message
		g.Progress = max(g.Progress, remote.Progress)
	case models.StatusGenerating:
		g.Status = models.StatusGenerating
		g.Progress = max(g.Progress, clampProgress(remote.Progress))
	default:
		return gens
	}

	out := slices.Clone(gens)
	out[i] = g
	return out
}

func indexOf(gens []models.Generation, id string) int {
	return slices.IndexFunc(gens, func(g models.Generation) bool { return g.ID == id })
}

func clampProgress(p int) int {
	return min(max(p, 0), 100)
}
