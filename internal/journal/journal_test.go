package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/models"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func started(id string, createdAt int64) events.Started {
	return events.Started{ID: id, Prompt: "prompt " + id, Status: models.StatusPending, CreatedAt: createdAt}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "mgpt.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer j.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
	if err := j.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestReopenFailsInterruptedGenerations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mgpt.db")
	ctx := context.Background()

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	j.Emit(started("gen_live", 1000))
	j.Emit(events.Progress{ID: "gen_live", Status: models.StatusGenerating, Progress: 40})
	j.Emit(started("gen_queued", 1001))
	j.Emit(started("gen_done", 1002))
	j.Emit(events.Completed{ID: "gen_done", Status: models.StatusCompleted, Title: "Kept"})
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()

	for _, id := range []string{"gen_live", "gen_queued"} {
		g, err := j.Get(ctx, id)
		if err != nil {
			t.Fatalf("Get %s: %v", id, err)
		}
		if g.Status != models.StatusFailed || g.Error != InterruptedError || g.Message != InterruptedMessage {
			t.Errorf("%s after reopen = %s %q %q, want failed", id, g.Status, g.Error, g.Message)
		}
	}

	live, _ := j.Get(ctx, "gen_live")
	if live.Progress != 40 {
		t.Errorf("progress = %d, want last value 40 kept", live.Progress)
	}

	done, _ := j.Get(ctx, "gen_done")
	if done.Status != models.StatusCompleted || done.Title != "Kept" {
		t.Errorf("completed row changed on reopen: %+v", done)
	}

	// A late event from the old process must not revive the row.
	j.Emit(events.Progress{ID: "gen_live", Status: models.StatusGenerating, Progress: 80})
	if g, _ := j.Get(ctx, "gen_live"); g.Status != models.StatusFailed {
		t.Errorf("status = %s after late progress, want failed", g.Status)
	}
}

func TestLifecycleCompleted(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Emit(started("gen_1", 1000))
	j.Emit(events.Progress{ID: "gen_1", Status: models.StatusGenerating, Progress: 30})
	j.Emit(events.Progress{ID: "gen_1", Status: models.StatusGenerating, Progress: 10})

	g, err := j.Get(ctx, "gen_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.Status != models.StatusGenerating || g.Progress != 30 {
		t.Errorf("after progress: status=%s progress=%d, want generating 30", g.Status, g.Progress)
	}

	j.Emit(events.Completed{
		ID: "gen_1", Status: models.StatusCompleted,
		Title: "Neon Dreams", Description: "prompt gen_1",
		Image: "/cover.svg", AudioURL: "/audio/gen_1.ogg",
	})
	// late events are ignored
	j.Emit(events.Failed{ID: "gen_1", Status: models.StatusFailed, Error: "Cancelled"})
	j.Emit(events.Progress{ID: "gen_1", Status: models.StatusGenerating, Progress: 40})

	g, err = j.Get(ctx, "gen_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := models.Generation{
		ID: "gen_1", Prompt: "prompt gen_1", Status: models.StatusCompleted,
		Progress: 100, CreatedAt: 1000, Title: "Neon Dreams", Description: "prompt gen_1",
		Image: "/cover.svg", AudioURL: "/audio/gen_1.ogg",
	}
	if *g != want {
		t.Errorf("got %+v\nwant %+v", *g, want)
	}
}

func TestLifecycleFailed(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Emit(started("gen_3", 1000))
	j.Emit(events.Failed{ID: "gen_3", Status: models.StatusFailed, Error: "Network Failed", Message: "Connection timeout. Please try again."})

	g, err := j.Get(ctx, "gen_3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if g.Status != models.StatusFailed || g.Error != "Network Failed" || g.Message != "Connection timeout. Please try again." || g.Progress != 0 {
		t.Errorf("got %+v", *g)
	}
}

func TestDuplicateStartedIgnored(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Emit(started("gen_1", 1000))
	j.Emit(events.Progress{ID: "gen_1", Status: models.StatusGenerating, Progress: 50})
	j.Emit(started("gen_1", 2000))

	g, err := j.Get(ctx, "gen_1")
	if err != nil {
		t.Fatal(err)
	}
	if g.Progress != 50 || g.CreatedAt != 1000 {
		t.Errorf("duplicate started overwrote record: %+v", *g)
	}
}

func TestGetNotFound(t *testing.T) {
	j := newTestJournal(t)
	if _, err := j.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEventsForUnknownIDIgnored(t *testing.T) {
	j := newTestJournal(t)
	j.Emit(events.Progress{ID: "ghost", Status: models.StatusGenerating, Progress: 50})

	gens, err := j.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 0 {
		t.Errorf("List = %d rows, want 0", len(gens))
	}
}

func TestListNewestFirst(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	j.Emit(started("gen_a", 1000))
	j.Emit(started("gen_b", 3000))
	j.Emit(started("gen_c", 2000))

	gens, err := j.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, g := range gens {
		ids = append(ids, g.ID)
	}
	if len(ids) != 3 || ids[0] != "gen_b" || ids[1] != "gen_c" || ids[2] != "gen_a" {
		t.Errorf("order = %v, want [gen_b gen_c gen_a]", ids)
	}

	gens, err = j.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(gens) != 2 {
		t.Errorf("List(2) = %d rows", len(gens))
	}
}

func TestRecordUnknownEvent(t *testing.T) {
	j := newTestJournal(t)
	err := j.Record(context.Background(), bogus{})
	if !errors.Is(err, events.ErrUnknownEvent) {
		t.Errorf("err = %v, want ErrUnknownEvent", err)
	}
}

type bogus struct{}

func (bogus) EventName() string    { return "BOGUS" }
func (bogus) GenerationID() string { return "x" }
