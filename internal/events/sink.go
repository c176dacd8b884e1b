package events

// Sink receives emitted events. Emit must not block for long; the
// simulator calls it from its timer goroutine.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Event)

// Emit calls f(ev).
func (f SinkFunc) Emit(ev Event) { f(ev) }

// Sinks emits to each sink in order. Nil entries are skipped.
type Sinks []Sink

// Emit delivers ev to every sink.
func (s Sinks) Emit(ev Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Emit(ev)
		}
	}
}
