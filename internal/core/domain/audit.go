package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type Severity string

const (
	SeverityAudit   Severity = "audit"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityAudit, SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// AuditEvent is an immutable audit log entry. RecordID is nil for
// table-wide actions.
type AuditEvent struct {
	ID            int64           `json:"id"`
	EventID       string          `json:"event_id"`
	ActorID       ActorID         `json:"actor_id"`
	Action        string          `json:"action"`
	Table         string          `json:"table"`
	RecordID      *int64          `json:"record_id,omitempty"`
	RecordVersion int64           `json:"record_version"`
	Description   string          `json:"description"`
	SourceIP      string          `json:"source_ip"`
	Severity      Severity        `json:"severity"`
	Device        string          `json:"device"`
	SessionID     string          `json:"session_id"`
	Snapshot      json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// AuditFilter selects audit events. From is inclusive, To exclusive.
type AuditFilter struct {
	Table    string
	RecordID *int64
	ActorID  *int64
	Action   string
	From     time.Time
	To       time.Time
	AfterID  int64
	Limit    int
}

// NewMutationAudit builds the event recording op on ent. snapshot is the
// state after the change, or before it for deletes.
func NewMutationAudit(spec KindSpec, op Operation, ent Entity, actor ActorID, origin Origin, at time.Time, snapshot json.RawMessage) AuditEvent {
	origin = origin.Normalize()
	id := ent.ID
	return AuditEvent{
		ActorID:       actor,
		Action:        spec.Action(op),
		Table:         spec.Table,
		RecordID:      &id,
		RecordVersion: ent.Version,
		Description:   describeMutation(spec, op, ent),
		SourceIP:      origin.SourceIP,
		Severity:      SeverityAudit,
		Device:        origin.Device,
		SessionID:     origin.SessionID,
		Snapshot:      snapshot,
		CreatedAt:     at,
	}
}

func describeMutation(spec KindSpec, op Operation, ent Entity) string {
	switch op {
	case OpCreate:
		return fmt.Sprintf("%s %d created in table %s", spec.Kind, ent.ID, spec.Table)
	case OpUpdate:
		return fmt.Sprintf("%s %d updated in table %s (version %d)", spec.Kind, ent.ID, spec.Table, ent.Version)
	case OpDelete:
		return fmt.Sprintf("%s %d deleted from table %s", spec.Kind, ent.ID, spec.Table)
	}
	return fmt.Sprintf("%s %d %s in table %s", spec.Kind, ent.ID, op, spec.Table)
}
