package generation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/models"
)

// ServiceConfig holds the Service's collaborators. Zero values pick
// in-process defaults.
type ServiceConfig struct {
	Counter Counter       // defaults to a LocalCounter
	Policy  FailurePolicy // defaults to EveryNth(3)
	Sim     SimulatorConfig
	Now     func() time.Time
}

type submission struct {
	Prompt string `validate:"required"`
}

// Service is the request entry point: it validates prompts, assigns ids,
// emits started and schedules the simulator.
type Service struct {
	ctx      context.Context
	bus      events.Sink
	sim      *Simulator
	counter  Counter
	policy   FailurePolicy
	validate *validator.Validate
	now      func() time.Time

	mu        sync.Mutex
	tasks     map[string]*Task
	wg        sync.WaitGroup
	submitted atomic.Int64
}

// NewService creates an entry point emitting to bus. Simulations run under
// ctx; cancelling it stops every running simulation silently. A nil bus is
// accepted so the server can report it as not ready.
func NewService(ctx context.Context, bus events.Sink, cfg ServiceConfig) *Service {
	if cfg.Counter == nil {
		cfg.Counter = &LocalCounter{}
	}
	if cfg.Policy == nil {
		cfg.Policy = EveryNth(3)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Service{
		ctx:      ctx,
		bus:      bus,
		counter:  cfg.Counter,
		policy:   cfg.Policy,
		validate: validator.New(),
		now:      cfg.Now,
		tasks:    make(map[string]*Task),
	}
	if bus != nil {
		s.sim = NewSimulator(bus, cfg.Sim)
	}
	return s
}

// Submit accepts a prompt and returns the new generation id. The started
// event has been emitted by the time Submit returns.
func (s *Service) Submit(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if err := s.validate.Struct(submission{Prompt: prompt}); err != nil {
		return "", ErrEmptyPrompt
	}
	if s.bus == nil {
		return "", ErrBusUnavailable
	}

	count, err := s.counter.Next(ctx)
	if err != nil {
		return "", fmt.Errorf("submission counter: %w", err)
	}
	fail := s.policy(count)

	now := s.now()
	id := NewID(now)

	s.sim.Start(s.ctx, events.Started{
		ID:        id,
		Prompt:    prompt,
		Status:    models.StatusPending,
		Progress:  0,
		CreatedAt: now.UnixMilli(),
	}, fail, s.register)
	s.submitted.Add(1)
	log.Printf("Generation %s started (submission %d, fail=%v): %q", id, count, fail, prompt)

	return id, nil
}

// register tracks t until its goroutine exits.
func (s *Service) register(t *Task) {
	s.mu.Lock()
	s.tasks[t.ID()] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-t.Done()
		s.mu.Lock()
		delete(s.tasks, t.ID())
		s.mu.Unlock()
	}()
}

// Cancel stops an active generation. Returns ErrNotFound for unknown or
// already finished ids.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	s.mu.Unlock()

	if !ok || !t.Cancel() {
		return ErrNotFound
	}
	log.Printf("Generation %s cancelled", id)
	return nil
}

// ActiveCount returns the number of running simulations.
func (s *Service) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Submissions returns the number of prompts this process accepted.
func (s *Service) Submissions() int64 {
	return s.submitted.Load()
}

// Ready reports whether the service has an event bus.
func (s *Service) Ready() bool {
	return s.bus != nil
}

// Wait blocks until every scheduled simulation has exited.
func (s *Service) Wait() {
	s.wg.Wait()
}
