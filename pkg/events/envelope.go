// Package events publishes domain events for downstream consumers.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope wraps every published payload.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Producer      string    `json:"producer,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// NewEnvelope stamps data with a fresh event id.
func NewEnvelope(eventType, correlationID, producer string, data any, now time.Time) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			Type:          eventType,
			Time:          now.UTC(),
			Producer:      producer,
			CorrelationID: correlationID,
		},
		Data: data,
	}
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
