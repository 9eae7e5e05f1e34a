package models

import (
	"encoding/json"
	"time"
)

// OutboxStatus represents the status of an outbox message
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusCompleted  OutboxStatus = "completed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxMessage represents a message to be published from the outbox table
type OutboxMessage struct {
	ID                 int64        `db:"id" json:"id"`
	AggregateType      string       `db:"aggregate_type" json:"aggregate_type"`
	AggregateID        string       `db:"aggregate_id" json:"aggregate_id"`
	EventType          string       `db:"event_type" json:"event_type"`
	Payload            []byte       `db:"payload" json:"payload"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	ProcessedAt        *time.Time   `db:"processed_at" json:"processed_at,omitempty"`
	ProcessingAttempts int          `db:"processing_attempts" json:"processing_attempts"`
	ClaimedAt          *time.Time   `db:"claimed_at" json:"claimed_at,omitempty"`
	LastError          *string      `db:"last_error" json:"last_error,omitempty"`
	Status             OutboxStatus `db:"status" json:"status"`
}

// OutboxMessageEvent is the envelope published to the broker
type OutboxMessageEvent struct {
	EventType   string          `json:"event_type"`
	EventID     string          `json:"event_id"`
	AggregateID string          `json:"aggregate_id"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Data        json.RawMessage `json:"data"`
}

// StatusChangedData is the payload of <kind>_created and <kind>_status_changed
// events. OldStatus is empty for creation.
type StatusChangedData struct {
	EntityType EntityKind `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	OldStatus  string     `json:"old_status"`
	NewStatus  string     `json:"new_status"`
	Note       string     `json:"note,omitempty"`
	ActorID    string     `json:"actor_id,omitempty"`
}

// NewStatusChangedEvent creates the outbox message announcing a status change
func NewStatusChangedEvent(data StatusChangedData) (*OutboxMessage, error) {
	return newEntityEvent(data.EntityType.StatusChangedEvent(), data)
}

// NewCreatedEvent creates the outbox message announcing a new entity
func NewCreatedEvent(data StatusChangedData) (*OutboxMessage, error) {
	return newEntityEvent(data.EntityType.CreatedEvent(), data)
}

func newEntityEvent(eventType string, data StatusChangedData) (*OutboxMessage, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	now := GetCurrentTime()
	event := OutboxMessageEvent{
		EventType:   eventType,
		EventID:     GenerateID("evt"),
		AggregateID: data.EntityID,
		OccurredAt:  now,
		Data:        raw,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &OutboxMessage{
		AggregateType:      string(data.EntityType),
		AggregateID:        data.EntityID,
		EventType:          event.EventType,
		Payload:            payload,
		CreatedAt:          now,
		ProcessingAttempts: 0,
		Status:             OutboxStatusPending,
	}, nil
}

// DecodeStatusChanged parses the envelope of a created or status changed event
func DecodeStatusChanged(payload []byte) (*OutboxMessageEvent, *StatusChangedData, error) {
	var event OutboxMessageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, nil, err
	}

	var data StatusChangedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return nil, nil, err
	}

	return &event, &data, nil
}
