package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// EnvelopeVersion is bumped when the envelope layout changes.
const EnvelopeVersion = 1

// Event is the envelope of every published message. Data carries the JSON
// payload of the concrete event type.
type Event struct {
	ID            string          `json:"event_id"`
	Type          string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Source        string          `json:"source"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	ActorID       string          `json:"actor_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// EventOption sets an optional envelope field.
type EventOption func(*Event)

// WithCorrelationID tags the event with the request it was raised by.
func WithCorrelationID(id string) EventOption {
	return func(e *Event) { e.CorrelationID = id }
}

// WithActor records the user whose action raised the event.
func WithActor(userID string) EventOption {
	return func(e *Event) { e.ActorID = userID }
}

// NewEvent builds an envelope around data with a fresh ID and the current
// UTC time.
func NewEvent(eventType, aggregateType, aggregateID, source string, data any, opts ...EventOption) (*Event, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	e := &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Version:       EnvelopeVersion,
		OccurredAt:    time.Now().UTC(),
		Source:        source,
		Data:          payload,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// headers mirrors the routing fields of the envelope so consumers can filter
// without decoding the value. Empty optional fields are omitted.
func (e *Event) headers() []kafka.Header {
	h := []kafka.Header{
		{Key: "event_type", Value: []byte(e.Type)},
		{Key: "aggregate_type", Value: []byte(e.AggregateType)},
		{Key: "source", Value: []byte(e.Source)},
	}
	if e.CorrelationID != "" {
		h = append(h, kafka.Header{Key: "correlation_id", Value: []byte(e.CorrelationID)})
	}
	if e.ActorID != "" {
		h = append(h, kafka.Header{Key: "actor_id", Value: []byte(e.ActorID)})
	}
	return h
}
