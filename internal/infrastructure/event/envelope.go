// Package event publishes chat activity to other services over AMQP.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Meta carries the routing and tracing metadata of an Envelope
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer"`
}

// Envelope wraps an event payload with its metadata
type Envelope struct {
	Meta    Meta            `json:"meta"`
	Payload json.RawMessage `json:"payload"`
}

// NewEnvelope marshals payload into an envelope of the given type.
// An empty id gets a fresh UUID and the correlation id falls back to the id.
func NewEnvelope(eventType, id, correlationID, producer string, at time.Time, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal payload: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if correlationID == "" {
		correlationID = id
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return Envelope{
		Meta: Meta{
			ID:            id,
			Type:          eventType,
			Time:          at,
			CorrelationID: correlationID,
			Producer:      producer,
		},
		Payload: body,
	}, nil
}
