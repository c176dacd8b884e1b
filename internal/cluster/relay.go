package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/manozcodes/mgpt/internal/events"
)

const publishTimeout = 2 * time.Second

// message is what goes over the Redis channel.
type message struct {
	Origin string          `json:"origin"`
	Event  json.RawMessage `json:"event"`
}

// Relay publishes locally emitted events to a Redis channel and re-emits
// events published by other processes to a local sink.
type Relay struct {
	client  *redis.Client
	channel string
	origin  string
	local   events.Sink
	ready   chan struct{}
}

// NewRelay creates a relay on channel delivering remote events to local.
func NewRelay(client *redis.Client, channel string, local events.Sink) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		local:   local,
		ready:   make(chan struct{}),
	}
}

// Origin returns this process's relay id.
func (r *Relay) Origin() string { return r.origin }

// Ready is closed once Run has subscribed.
func (r *Relay) Ready() <-chan struct{} { return r.ready }

// Emit publishes ev for other processes. Errors are logged; the local bus
// is not affected.
func (r *Relay) Emit(ev events.Event) {
	data, err := events.Encode(ev)
	if err != nil {
		log.Printf("Relay: %v", err)
		return
	}
	payload, err := json.Marshal(message{Origin: r.origin, Event: data})
	if err != nil {
		log.Printf("Relay: marshal: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		log.Printf("Relay: publish %s %s: %v", ev.EventName(), ev.GenerationID(), err)
	}
}

// Run subscribes to the channel and forwards remote events until ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	close(r.ready)
	log.Printf("Relay subscribed to %s (origin %s)", r.channel, r.origin)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(msg)
		}
	}
}

func (r *Relay) deliver(msg *redis.Message) {
	var m message
	if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
		log.Printf("Relay: bad message: %v", err)
		return
	}
	if m.Origin == r.origin {
		return
	}
	ev, err := events.Decode(m.Event)
	if err != nil {
		log.Printf("Relay: %v", err)
		return
	}
	r.local.Emit(ev)
}
