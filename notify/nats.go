package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes events on "<subject>.<restaurant>.<kind>".
type NATSSink struct {
	conn    *nats.Conn
	subject string
}

func NewNATSSink(url, subject string) (*NATSSink, error) {
	conn, err := nats.Connect(url, nats.Name("restaurant-floor"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if subject == "" {
		subject = "floor"
	}
	return &NATSSink{conn: conn, subject: subject}, nil
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Publish(_ context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.conn.Publish(Subject(s.subject, ev), body)
}

func (s *NATSSink) Close() error {
	s.conn.Close()
	return nil
}

// Subject builds the NATS subject of an event.
func Subject(prefix string, ev Event) string {
	return prefix + "." + ev.RestaurantID + "." + ev.Kind
}
