package events

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/time/rate"
)

// Sink persists events. The storage layer implements this.
type Sink interface {
	AppendEvent(ctx context.Context, event *SessionEvent) error
}

// Publisher writes events to a sink without blocking or failing the caller.
// High-frequency telemetry types are rate limited so a chatty execution loop
// cannot flood the event feed; lifecycle and error events always go through.
type Publisher struct {
	sink    Sink
	limiter *rate.Limiter
}

// throttledTypes are event types subject to rate limiting.
var throttledTypes = map[EventType]bool{
	EventTypeResourceUsage: true,
	EventTypeProgress:      true,
}

// NewPublisher creates a publisher writing to sink. eventsPerSecond bounds
// throttled event types; <= 0 uses a default of 10/s with burst 20.
func NewPublisher(sink Sink, eventsPerSecond float64) *Publisher {
	if eventsPerSecond <= 0 {
		eventsPerSecond = 10
	}
	burst := int(eventsPerSecond * 2)
	if burst < 1 {
		burst = 1
	}
	return &Publisher{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(eventsPerSecond), burst),
	}
}

// Publish writes event to the sink. Throttled types that exceed the rate
// limit are silently dropped. Sink failures are logged, never returned:
// event publication must not break the execution loop.
func (p *Publisher) Publish(ctx context.Context, event *SessionEvent) {
	if p == nil || p.sink == nil || event == nil {
		return
	}
	if throttledTypes[event.Type] && !p.limiter.Allow() {
		return
	}
	if err := p.sink.AppendEvent(ctx, event); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to publish %s event: %v\n", event.Type, err)
	}
}
