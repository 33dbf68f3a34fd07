package domain

import (
	"encoding/json"
	"time"
)

const CurrentEventSchemaVersion = 1

// EventEnvelope is what the outbox publishes for every audited write.
type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   int64           `json:"aggregate_id"`
	Version       int64           `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	ActorID       ActorID         `json:"actor_id"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

func EnvelopeFromAudit(ev AuditEvent) EventEnvelope {
	var id int64
	if ev.RecordID != nil {
		id = *ev.RecordID
	}
	payload := ev.Snapshot
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return EventEnvelope{
		EventID:       ev.EventID,
		EventType:     ev.Action,
		SchemaVersion: CurrentEventSchemaVersion,
		AggregateType: ev.Table,
		AggregateID:   id,
		Version:       ev.RecordVersion,
		OccurredAt:    ev.CreatedAt,
		ActorID:       ev.ActorID,
		Source:        ev.SourceIP,
		Payload:       payload,
	}
}

// OutboxTopic is gmp.<table>.<action>.
func OutboxTopic(ev AuditEvent) string {
	return "gmp." + ev.Table + "." + ev.Action
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}

const (
	OutboxPending    = "pending"
	OutboxDispatched = "dispatched"
	OutboxDead       = "dead"
)
