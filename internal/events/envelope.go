package events

import (
	"encoding/json"
	"time"
)

// Envelope is the websocket frame, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds an outbound frame.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// AuditEnvelope is the record published to the audit exchange.
type AuditEnvelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	ActorID       string          `json:"actor_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func NewAuditEnvelope(eventType, aggregateType, aggregateID, actorID string, payload interface{}) (AuditEnvelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return AuditEnvelope{}, err
	}
	return AuditEnvelope{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		ActorID:       actorID,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}, nil
}
