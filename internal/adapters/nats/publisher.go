package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/oredesk/permitflow/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS, enables JetStream, and ensures the
// permit streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	streams := []nats.StreamConfig{
		{
			Name:      "PERMIT_EVENTS",
			Subjects:  []string{"permit.application.>", "permit.sweep.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    7 * 24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "PERMIT_NOTIFICATIONS",
			Subjects:  []string{"permit.notify.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// stream may already exist, fall back to update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// StatusEvent is the wire shape of an application transition.
type StatusEvent struct {
	ApplicationID string                   `json:"application_id"`
	From          domain.ApplicationStatus `json:"from"`
	To            domain.ApplicationStatus `json:"to"`
	At            time.Time                `json:"at"`
}

// PublishApplicationStatus publishes one transition on permit.application.<id>.
func (p *Publisher) PublishApplicationStatus(ctx context.Context, applicationID string, from, to domain.ApplicationStatus) error {
	data, err := json.Marshal(StatusEvent{ApplicationID: applicationID, From: from, To: to, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish("permit.application."+applicationID, data)
	return err
}

// PublishSweepCompleted publishes the aggregate result of a deadline sweep.
func (p *Publisher) PublishSweepCompleted(ctx context.Context, result domain.SweepResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("permit.sweep.completed", data)
	return err
}

// PublishNotification publishes a persisted notification for live delivery.
func (p *Publisher) PublishNotification(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = p.js.Publish("permit.notify."+n.RecipientID, data)
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
