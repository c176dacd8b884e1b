package generation

import (
	"context"
	"fmt"
	"log"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/models"
)

// Failure texts carried by terminal failed events.
const (
	FailError       = "Network Failed"
	FailMessage     = "Connection timeout. Please try again."
	CancelError     = "Cancelled"
	CancelMessage   = "Generation cancelled."
	DefaultImageURL = "/cover.svg"
)

// Timing holds the simulator's schedule.
type Timing struct {
	Tick          time.Duration // interval between progress steps
	Steps         int           // steps from 0 to 100%
	PauseSteps    []int         // steps that take one extra silent tick
	CompleteDelay time.Duration // wait after 100% before completed
	StartDelay    time.Duration // wait before the first progress tick
	FailDelay     time.Duration // wait before a marked failure is emitted
}

// DefaultTiming returns the production schedule: 40 steps of 2.5% every
// 200ms with pauses at steps 12, 24 and 30.
func DefaultTiming() Timing {
	return Timing{
		Tick:          200 * time.Millisecond,
		Steps:         40,
		PauseSteps:    []int{12, 24, 30},
		CompleteDelay: 500 * time.Millisecond,
		StartDelay:    300 * time.Millisecond,
		FailDelay:     500 * time.Millisecond,
	}
}

// AudioURL returns the placeholder audio location for a generation.
func AudioURL(id string) string {
	return fmt.Sprintf("/audio/%s.ogg", id)
}

// SimulatorConfig holds optional Simulator settings.
type SimulatorConfig struct {
	Timing Timing
	Titles TitleFunc // optional, falls back to TitlePool
	Image  string    // placeholder image URL, defaults to DefaultImageURL
}

// Simulator fakes the generation lifecycle for one id at a time per Task,
// emitting progress and one terminal event to its sink.
type Simulator struct {
	sink      events.Sink
	timing    Timing
	titles    TitleFunc
	image     string
	newTicker func(time.Duration) ticker
}

// ticker is the tick source of a run.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) ticker {
	return timeTicker{time.NewTicker(d)}
}

// NewSimulator creates a simulator emitting to sink.
func NewSimulator(sink events.Sink, cfg SimulatorConfig) *Simulator {
	if cfg.Timing.Steps <= 0 {
		cfg.Timing.Steps = DefaultTiming().Steps
	}
	if cfg.Timing.Tick <= 0 {
		cfg.Timing.Tick = DefaultTiming().Tick
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImageURL
	}
	return &Simulator{
		sink:      sink,
		timing:    cfg.Timing,
		titles:    cfg.Titles,
		image:     cfg.Image,
		newTicker: newTimeTicker,
	}
}

// Task is the handle of one scheduled simulation.
type Task struct {
	id     string
	sink   events.Sink
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	live     bool // started has been emitted
	finished bool // a terminal event has been emitted
}

// ID returns the generation id this task drives.
func (t *Task) ID() string { return t.id }

// Done is closed when the task goroutine has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel stops an active task and emits its terminal failed event.
// Returns false if the task has not emitted started yet or has already
// reached a terminal state.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	if !t.live || t.finished {
		t.mu.Unlock()
		return false
	}
	t.finished = true
	t.sink.Emit(events.Failed{
		ID:      t.id,
		Status:  models.StatusFailed,
		Error:   CancelError,
		Message: CancelMessage,
	})
	t.mu.Unlock()

	t.cancel()
	return true
}

// emit forwards ev unless the task already finished. A terminal event
// finishes the task, so nothing follows it.
func (t *Task) emit(ev events.Event, terminal bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished {
		return false
	}
	if _, ok := ev.(events.Started); ok {
		t.live = true
	}
	if terminal {
		t.finished = true
	}
	t.sink.Emit(ev)
	return true
}

// Start emits started and schedules the simulation for started.ID. The
// optional register hook sees the task before started is emitted, so the
// task can be found by anyone who has seen the event. When fail is set the
// task emits only the failure event after the failure delay. Cancelling ctx
// stops the task without emitting anything.
func (s *Simulator) Start(ctx context.Context, started events.Started, fail bool, register func(*Task)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{
		id:     started.ID,
		sink:   s.sink,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if register != nil {
		register(t)
	}
	t.emit(started, false)

	go func() {
		defer close(t.done)
		defer cancel()

		if fail {
			s.runFailure(ctx, t)
			return
		}
		s.run(ctx, t, started.Prompt)
	}()

	return t
}

func (s *Simulator) runFailure(ctx context.Context, t *Task) {
	if !sleep(ctx, s.timing.FailDelay) {
		return
	}
	if t.emit(events.Failed{
		ID:      t.id,
		Status:  models.StatusFailed,
		Error:   FailError,
		Message: FailMessage,
	}, true) {
		log.Printf("Generation %s failed (simulated)", t.id)
	}
}

func (s *Simulator) run(ctx context.Context, t *Task, prompt string) {
	if !sleep(ctx, s.timing.StartDelay) {
		return
	}

	tk := s.newTicker(s.timing.Tick)
	defer tk.Stop()

	for step := 1; step <= s.timing.Steps; step++ {
		if !wait(ctx, tk.C()) {
			return
		}
		if slices.Contains(s.timing.PauseSteps, step) && !wait(ctx, tk.C()) {
			return
		}
		if !t.emit(events.Progress{
			ID:       t.id,
			Status:   models.StatusGenerating,
			Progress: Percent(step, s.timing.Steps),
		}, false) {
			return
		}
	}

	if !sleep(ctx, s.timing.CompleteDelay) {
		return
	}

	if t.emit(events.Completed{
		ID:          t.id,
		Status:      models.StatusCompleted,
		Title:       s.title(ctx, prompt),
		Description: prompt,
		Image:       s.image,
		AudioURL:    AudioURL(t.id),
	}, true) {
		log.Printf("Generation %s completed", t.id)
	}
}

// title tries the titler first, then falls back to the pool.
func (s *Simulator) title(ctx context.Context, prompt string) string {
	if s.titles != nil {
		if title := s.titles(ctx, prompt); title != "" {
			return title
		}
	}
	return PoolTitle()
}

// Percent converts a step to a whole percentage, exactly 100 at the last step.
func Percent(step, steps int) int {
	if steps <= 0 || step >= steps {
		return 100
	}
	return int(math.Round(float64(step) * 100 / float64(steps)))
}

func wait(ctx context.Context, tick <-chan time.Time) bool {
	select {
	case <-ctx.Done():
		return false
	case <-tick:
		return true
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
