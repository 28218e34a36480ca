package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageVersion is the payload version this build writes. Payloads without
// a version predate versioning and are read as version 1.
const MessageVersion = 1

// Message asks the consultation desk to follow up on a lead.
type Message struct {
	LeadID     string `json:"leadId"`
	RequestID  string `json:"requestId,omitempty"`
	EnqueuedAt string `json:"enqueuedAt"`
	Version    int    `json:"version"`
}

// NewLeadMessage stamps a lead notification with now in UTC.
func NewLeadMessage(leadID, requestID string, now time.Time) Message {
	return Message{
		LeadID:     leadID,
		RequestID:  requestID,
		EnqueuedAt: now.UTC().Format(time.RFC3339),
		Version:    MessageVersion,
	}
}

// Lag is how long the message waited before now. It is zero when the
// timestamp is missing or unparseable.
func (m Message) Lag(now time.Time) time.Duration {
	at, err := time.Parse(time.RFC3339, m.EnqueuedAt)
	if err != nil || now.Before(at) {
		return 0
	}
	return now.Sub(at)
}

func EncodeMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}

// DecodeMessage parses a payload and rejects versions newer than this
// build understands.
func DecodeMessage(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version == 0 {
		msg.Version = 1
	}
	if msg.Version > MessageVersion {
		return Message{}, fmt.Errorf("unsupported message version %d", msg.Version)
	}
	return msg, nil
}
