package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope types exchanged over the websocket.
const (
	EnvelopeJoin          = "join"
	EnvelopeJoined        = "joined"
	EnvelopeRejected      = "rejected"
	EnvelopeOrderCreated  = "order.created"
	EnvelopeOrderAssigned = "order.assigned"
)

// Envelope is the frame wrapper for every websocket message.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// JoinPayload is sent by the client as the first frame of a connection.
type JoinPayload struct {
	Token string `json:"token"`
}

// JoinedPayload confirms room membership to the client.
type JoinedPayload struct {
	Rooms  []string `json:"rooms"`
	UserID string   `json:"userId"`
	Role   string   `json:"role"`
}

// RejectedPayload tells the client why the server refused the join.
type RejectedPayload struct {
	Reason string `json:"reason"`
}

// NewEnvelope marshals payload into an envelope of the given type.
func NewEnvelope(typ string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling %s payload: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: raw, Timestamp: time.Now().UTC()}, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s envelope has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Type, err)
	}
	return nil
}

// IsOrderEvent reports whether the envelope carries an OrderEvent.
func (e Envelope) IsOrderEvent() bool {
	return e.Type == EnvelopeOrderCreated || e.Type == EnvelopeOrderAssigned
}
