// Package notify delivers floor events to display layers and other
// subscribers. Delivery is best effort: the floor never depends on it.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-floor/models"
	"github.com/yeremiapane/restaurant-floor/utils"
)

// Event is the wire form of a floor event.
type Event struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurant_id"`
	Kind         string          `json:"kind"`
	EntityType   string          `json:"entity_type"`
	EntityID     string          `json:"entity_id"`
	FromStatus   string          `json:"from_status,omitempty"`
	ToStatus     string          `json:"to_status,omitempty"`
	ActorID      uint            `json:"actor_id,omitempty"`
	Override     bool            `json:"override,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// FromFloorEvent converts a stored floor event.
func FromFloorEvent(ev models.FloorEvent) Event {
	out := Event{
		ID:           ev.EventID,
		RestaurantID: ev.RestaurantID,
		Kind:         ev.Kind,
		EntityType:   ev.EntityType,
		EntityID:     ev.EntityID,
		FromStatus:   ev.FromStatus,
		ToStatus:     ev.ToStatus,
		ActorID:      ev.ActorID,
		Override:     ev.Override,
		Reason:       ev.Reason,
		OccurredAt:   ev.CreatedAt,
	}
	if ev.Payload != "" && json.Valid([]byte(ev.Payload)) {
		out.Payload = json.RawMessage(ev.Payload)
	}
	return out
}

// Publisher sends one event somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Sink is a Publisher that holds a connection.
type Sink interface {
	Publisher
	Name() string
	Close() error
}

// PartialError is returned by Fanout when some sinks took the event and
// others did not.
type PartialError struct {
	Delivered int
	Err       error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("delivered to %d sinks: %v", e.Delivered, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Fanout publishes every event to all sinks. A failing sink does not stop
// the others. When every sink fails the failures are joined in the returned
// error; when only some fail it is a *PartialError.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

func (f *Fanout) Add(s Sink) {
	f.sinks = append(f.sinks, s)
}

func (f *Fanout) Len() int {
	return len(f.sinks)
}

func (f *Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"sink":  s.Name(),
				"kind":  ev.Kind,
				"event": ev.ID,
			}).WithError(err).Warn("notify: publish failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if delivered := len(f.sinks) - len(errs); delivered > 0 {
		return &PartialError{Delivered: delivered, Err: errors.Join(errs...)}
	}
	return errors.Join(errs...)
}

func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes events to the info logger. It is always enabled so the
// relay has somewhere to deliver when no broker is configured.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Publish(_ context.Context, ev Event) error {
	utils.InfoLogger.WithFields(logrus.Fields{
		"restaurant_id": ev.RestaurantID,
		"kind":          ev.Kind,
		"entity":        ev.EntityType,
		"entity_id":     ev.EntityID,
		"override":      ev.Override,
	}).Debug("floor event")
	return nil
}

func (LogSink) Close() error { return nil }
