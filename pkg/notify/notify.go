// Package notify fans events out to chat backends. The CLI feeds it manager
// state changes; audit entries (denials, errors) are not forwarded to it.
// Every backend is best-effort: a delivery failure is logged by the caller
// and never propagated back to whatever triggered the event.
package notify

import (
	"context"
	"fmt"
	"time"
)

// Severity classifies an Event for backends that want to style or filter
// on it.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is one notification fanned out to every configured backend.
type Event struct {
	Severity  Severity
	Title     string
	Detail    string
	Server    string
	Timestamp time.Time
}

// Backend delivers one Event to an external system.
type Backend interface {
	Notify(ctx context.Context, e Event) error
}

// Aggregator fans events out to every registered backend concurrently,
// collecting but not propagating individual backend failures.
type Aggregator struct {
	backends []Backend
	onErr    func(backend string, err error)
}

// NewAggregator constructs an Aggregator over the given backends. onErr, if
// non-nil, observes per-backend delivery failures (e.g. for logging); it
// must not block.
func NewAggregator(onErr func(backend string, err error), backends ...Backend) *Aggregator {
	return &Aggregator{backends: backends, onErr: onErr}
}

// Notify delivers e to every backend. Each delivery runs with its own
// short timeout so one slow backend cannot delay the others or the caller.
func (a *Aggregator) Notify(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	for _, b := range a.backends {
		go func(b Backend) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := b.Notify(ctx, e); err != nil && a.onErr != nil {
				a.onErr(fmt.Sprintf("%T", b), err)
			}
		}(b)
	}
}
