// Package events announces attendance and invoice changes to connected
// clients and downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"milkrun/internal/websocket"

	"cloud.google.com/go/pubsub"
)

const (
	AttendanceSubmitted = "attendance.submitted"
	AttendanceCleared   = "attendance.cleared"
	InvoiceGenerated    = "invoice.generated"
	InvoiceDeleted      = "invoice.deleted"
)

// Event is a domain change.
type Event struct {
	Type       string      `json:"type"`
	StoreID    string      `json:"storeId,omitempty"`
	OccurredAt time.Time   `json:"occurredAt"`
	Payload    interface{} `json:"payload"`
}

func New(eventType, storeID string, payload interface{}) Event {
	return Event{Type: eventType, StoreID: storeID, OccurredAt: time.Now().UTC(), Payload: payload}
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// HubPublisher pushes events to websocket clients of the event's store.
type HubPublisher struct {
	hub *websocket.Hub
}

func NewHubPublisher(hub *websocket.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if !p.hub.Publish(event.StoreID, data) {
		return errors.New("websocket hub is saturated")
	}
	return nil
}

// PubSubPublisher publishes events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	topic *pubsub.Topic
}

func NewPubSubPublisher(client *pubsub.Client, topic string) *PubSubPublisher {
	return &PubSubPublisher{topic: client.Topic(topic)}
}

// Publish blocks until the server acknowledges the message.
func (p *PubSubPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": event.Type, "store_id": event.StoreID},
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub publish %s: %w", event.Type, err)
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubPublisher) Stop() {
	p.topic.Stop()
}

// Multi fans an event out to every publisher.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
