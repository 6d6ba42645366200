package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DocumentImportMessage carries one raw provider payload to the import
// worker. BatchID is assigned by the producer and is stable across
// redeliveries so a replay overwrites instead of duplicating.
type DocumentImportMessage struct {
	BatchID   string          `json:"batchId"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewDocumentImportMessage creates a message stamped with the current time.
func NewDocumentImportMessage(batchID, kind string, payload []byte) *DocumentImportMessage {
	return &DocumentImportMessage{
		BatchID:   batchID,
		Kind:      kind,
		Payload:   json.RawMessage(payload),
		Timestamp: time.Now(),
	}
}

// Validate checks the envelope; the payload itself is checked by the
// normalizer.
func (m *DocumentImportMessage) Validate() error {
	switch {
	case m.BatchID == "":
		return errors.New("missing batch id")
	case m.Kind == "":
		return errors.New("missing kind")
	case len(m.Payload) == 0:
		return errors.New("missing payload")
	case !json.Valid(m.Payload):
		return errors.New("payload is not valid JSON")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *DocumentImportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DocumentImportMessageFromJSON decodes and validates a message body.
func DocumentImportMessageFromJSON(data []byte) (*DocumentImportMessage, error) {
	var msg DocumentImportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid import message: %w", err)
	}
	return &msg, nil
}
