package amqp

import (
	"encoding/json"
	"time"

	"concierge/internal/core"
)

// QueuedRequest wraps a request envelope on the queries queue. The
// enqueue timestamp lets consumers spot stale backlog.
type QueuedRequest struct {
	Envelope   core.RequestEnvelope `json:"envelope"`
	EnqueuedAt time.Time            `json:"enqueued_at"`
}

// NewQueuedRequest stamps an envelope for publication.
func NewQueuedRequest(env core.RequestEnvelope) *QueuedRequest {
	return &QueuedRequest{Envelope: env, EnqueuedAt: time.Now()}
}

// ToJSON converts the message to JSON bytes.
func (m *QueuedRequest) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// QueuedRequestFromJSON creates a message from JSON bytes.
func QueuedRequestFromJSON(data []byte) (*QueuedRequest, error) {
	var msg QueuedRequest
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// QueuedReply wraps a routed response on the replies queue.
type QueuedReply struct {
	Envelope   core.ResponseEnvelope `json:"envelope"`
	AnsweredAt time.Time             `json:"answered_at"`
}

// NewQueuedReply stamps a response for publication.
func NewQueuedReply(env core.ResponseEnvelope) *QueuedReply {
	return &QueuedReply{Envelope: env, AnsweredAt: time.Now()}
}

// ToJSON converts the message to JSON bytes.
func (m *QueuedReply) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// QueuedReplyFromJSON creates a message from JSON bytes.
func QueuedReplyFromJSON(data []byte) (*QueuedReply, error) {
	var msg QueuedReply
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
