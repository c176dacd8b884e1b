package store

import (
	"slices"
	"sync"

	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/models"
)

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status      *models.Status
	Progress    *int
	Title       *string
	Description *string
	Image       *string
	AudioURL    *string
	Error       *string
	Message     *string
}

func (p Patch) apply(g models.Generation) models.Generation {
	if p.Status != nil {
		g.Status = *p.Status
	}
	if p.Progress != nil {
		g.Progress = *p.Progress
	}
	if p.Title != nil {
		g.Title = *p.Title
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.Image != nil {
		g.Image = *p.Image
	}
	if p.AudioURL != nil {
		g.AudioURL = *p.AudioURL
	}
	if p.Error != nil {
		g.Error = *p.Error
	}
	if p.Message != nil {
		g.Message = *p.Message
	}
	return g
}

// Generations is the ordered generation list, newest first.
type Generations struct {
	mu    sync.Mutex
	items []models.Generation
	obs   observable[[]models.Generation]
}

// NewGenerations creates an empty generation store.
func NewGenerations() *Generations {
	return &Generations{}
}

// Subscribe registers fn to receive a snapshot after every change.
func (s *Generations) Subscribe(fn func([]models.Generation)) (unsubscribe func()) {
	return s.obs.subscribe(fn)
}

// Snapshot returns a copy of the list.
func (s *Generations) Snapshot() []models.Generation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

// Get returns one generation by id.
func (s *Generations) Get(id string) (models.Generation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], true
	}
	return models.Generation{}, false
}

// IsEmpty reports whether the list has no generations.
func (s *Generations) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

// Add prepends g. A generation already in the list is left as is.
func (s *Generations) Add(g models.Generation) {
	s.change(func(items []models.Generation) []models.Generation {
		if indexOf(items, g.ID) >= 0 {
			return items
		}
		return append([]models.Generation{g}, items...)
	})
}

// Update merges patch into the generation with id. Unknown ids are a no-op.
func (s *Generations) Update(id string, patch Patch) {
	s.change(func(items []models.Generation) []models.Generation {
		i := indexOf(items, id)
		if i < 0 {
			return items
		}
		out := slices.Clone(items)
		out[i] = patch.apply(out[i])
		return out
	})
}

// Remove deletes the generation with id.
func (s *Generations) Remove(id string) {
	s.change(func(items []models.Generation) []models.Generation {
		i := indexOf(items, id)
		if i < 0 {
			return items
		}
		return slices.Delete(slices.Clone(items), i, i+1)
	})
}

// Apply reduces a lifecycle event into the list.
func (s *Generations) Apply(ev events.Event) {
	s.change(func(items []models.Generation) []models.Generation {
		return Reduce(items, ev)
	})
}

// Sync merges a server-side snapshot of one generation.
func (s *Generations) Sync(remote models.Generation) {
	s.change(func(items []models.Generation) []models.Generation {
		return Sync(items, remote)
	})
}

// Pending returns the ids of generations still waiting for a terminal event.
func (s *Generations) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, g := range s.items {
		if !g.Status.Terminal() {
			ids = append(ids, g.ID)
		}
	}
	return ids
}

// change runs fn under the lock and notifies subscribers unless fn
// returned the list unchanged.
func (s *Generations) change(fn func([]models.Generation) []models.Generation) {
	s.mu.Lock()
	before := s.items
	after := fn(before)
	changed := len(after) != len(before) || (len(after) > 0 && &after[0] != &before[0])
	if changed {
		s.items = after
	}
	snapshot := slices.Clone(s.items)
	s.mu.Unlock()

	if changed {
		s.obs.notify(snapshot)
	}
}
