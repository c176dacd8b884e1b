package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"github.com/manozcodes/mgpt/internal/events"
	"github.com/manozcodes/mgpt/internal/models"
	"github.com/manozcodes/mgpt/internal/store"
)

// ErrReconnectExhausted is returned by Receiver.Run when the server stayed
// unreachable for every reconnection attempt.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// ConnState is the receiver's connection state.
type ConnState int

const (
	StateConnecting ConnState = iota
	StateConnected
	StateDisconnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Resyncer fetches the server's latest state of one generation.
type Resyncer interface {
	Generation(ctx context.Context, id string) (*models.Generation, error)
}

// ReceiverConfig holds receiver settings.
type ReceiverConfig struct {
	URL      string        // ws://host:port/ws
	Attempts int           // consecutive failed dials before giving up, default 5
	Backoff  time.Duration // wait between dials, default 1s
	Dialer   *websocket.Dialer
	Resync   Resyncer        // optional, consulted after a reconnect
	OnState  func(ConnState) // optional
}

// Receiver keeps a generation store in step with the server's event channel.
type Receiver struct {
	cfg  ReceiverConfig
	gens *store.Generations
}

// NewReceiver creates a receiver feeding gens.
func NewReceiver(gens *store.Generations, cfg ReceiverConfig) *Receiver {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 5
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Receiver{cfg: cfg, gens: gens}
}

// Run connects and applies events until ctx is cancelled (returns nil) or
// reconnection gives up (returns ErrReconnectExhausted). Events sent while
// disconnected are lost; pending generations are resynced after a reconnect.
func (r *Receiver) Run(ctx context.Context) error {
	failures := 0
	connected := false

	for {
		r.setState(StateConnecting)
		conn, _, err := r.cfg.Dialer.DialContext(ctx, r.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			log.Printf("Receiver: dial %s failed (%d/%d): %v", r.cfg.URL, failures, r.cfg.Attempts, err)
			if failures >= r.cfg.Attempts {
				r.setState(StateDisconnected)
				return fmt.Errorf("%w: %v", ErrReconnectExhausted, err)
			}
			if !sleep(ctx, r.cfg.Backoff) {
				return nil
			}
			continue
		}

		failures = 0
		r.setState(StateConnected)
		if connected {
			r.resync(ctx)
		}
		connected = true

		err = r.read(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("Receiver: connection lost: %v", err)
		if !sleep(ctx, r.cfg.Backoff) {
			return nil
		}
	}
}

// read applies frames until the connection drops or ctx is cancelled.
func (r *Receiver) read(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ev, err := events.Decode(data)
		if err != nil {
			log.Printf("Receiver: %v", err)
			continue
		}
		r.gens.Apply(ev)
	}
}

func (r *Receiver) resync(ctx context.Context) {
	if r.cfg.Resync == nil {
		return
	}
	for _, id := range r.gens.Pending() {
		g, err := r.cfg.Resync.Generation(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			log.Printf("Receiver: resync %s: %v", id, err)
			continue
		}
		r.gens.Sync(*g)
	}
}

func (r *Receiver) setState(s ConnState) {
	if r.cfg.OnState != nil {
		r.cfg.OnState(s)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
