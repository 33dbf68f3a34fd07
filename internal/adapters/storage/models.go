package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"gorm.io/datatypes"
)

// entityModel is shared by every kind table; queries pick the table with
// tx.Table(spec.Table).
type entityModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Fields        datatypes.JSON `gorm:"column:fields;not null"`
	Version       int64          `gorm:"column:version;not null"`
	IdentityToken string         `gorm:"column:identity_token;not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
	ModifiedAt    time.Time      `gorm:"column:modified_at;not null"`
	ModifiedBy    *int64         `gorm:"column:modified_by"`
}

func (m entityModel) toDomain(spec domain.KindSpec) (domain.Entity, error) {
	raw, err := domain.DecodeFieldMap(m.Fields)
	if err != nil {
		return domain.Entity{}, fmt.Errorf("decode %s %d fields: %w", spec.Table, m.ID, err)
	}
	return domain.Entity{
		Kind:          spec.Kind,
		ID:            m.ID,
		Fields:        spec.Resolve(raw),
		Version:       m.Version,
		IdentityToken: m.IdentityToken,
		CreatedAt:     m.CreatedAt.UTC(),
		ModifiedAt:    m.ModifiedAt.UTC(),
		ModifiedBy:    domain.ActorFromPtr(m.ModifiedBy),
	}, nil
}

type auditEventModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string         `gorm:"column:event_id;not null"`
	ActorID       *int64         `gorm:"column:actor_id"`
	Action        string         `gorm:"column:action;not null"`
	EntityTable   string         `gorm:"column:entity_table;not null"`
	RecordID      *int64         `gorm:"column:record_id"`
	RecordVersion int64          `gorm:"column:record_version;not null"`
	Description   string         `gorm:"column:description;not null"`
	SourceIP      string         `gorm:"column:source_ip;not null"`
	Severity      string         `gorm:"column:severity;not null"`
	Device        string         `gorm:"column:device;not null"`
	SessionID     string         `gorm:"column:session_id;not null"`
	Snapshot      datatypes.JSON `gorm:"column:snapshot"`
	CreatedAt     time.Time      `gorm:"column:created_at;not null"`
}

func (auditEventModel) TableName() string {
	return "audit_events"
}

func auditRowFromDomain(ev domain.AuditEvent) auditEventModel {
	return auditEventModel{
		EventID:       ev.EventID,
		ActorID:       ev.ActorID.Ptr(),
		Action:        ev.Action,
		EntityTable:   ev.Table,
		RecordID:      ev.RecordID,
		RecordVersion: ev.RecordVersion,
		Description:   ev.Description,
		SourceIP:      ev.SourceIP,
		Severity:      string(ev.Severity),
		Device:        ev.Device,
		SessionID:     ev.SessionID,
		Snapshot:      datatypes.JSON(ev.Snapshot),
		CreatedAt:     ev.CreatedAt,
	}
}

func (m auditEventModel) toDomain() domain.AuditEvent {
	return domain.AuditEvent{
		ID:            m.ID,
		EventID:       m.EventID,
		ActorID:       domain.ActorFromPtr(m.ActorID),
		Action:        m.Action,
		Table:         m.EntityTable,
		RecordID:      m.RecordID,
		RecordVersion: m.RecordVersion,
		Description:   m.Description,
		SourceIP:      m.SourceIP,
		Severity:      domain.Severity(m.Severity),
		Device:        m.Device,
		SessionID:     m.SessionID,
		Snapshot:      json.RawMessage(m.Snapshot),
		CreatedAt:     m.CreatedAt.UTC(),
	}
}

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "outbox_events"
}

type signatureModel struct {
	ID                int64          `gorm:"column:id;primaryKey;autoIncrement"`
	TargetType        string         `gorm:"column:target_type;not null"`
	TargetID          int64          `gorm:"column:target_id;not null"`
	SignerID          int64          `gorm:"column:signer_id;not null"`
	SignerUsername    string         `gorm:"column:signer_username;not null"`
	SignerFullName    string         `gorm:"column:signer_full_name;not null"`
	ReasonCode        string         `gorm:"column:reason_code;not null"`
	ReasonName        string         `gorm:"column:reason_name;not null"`
	ReasonDescription string         `gorm:"column:reason_description;not null"`
	SignatureType     string         `gorm:"column:signature_type;not null"`
	RecordHash        string         `gorm:"column:record_hash;not null"`
	RecordVersion     int64          `gorm:"column:record_version;not null"`
	SignedAt          time.Time      `gorm:"column:signed_at;not null"`
	TimeZone          string         `gorm:"column:time_zone;not null"`
	SourceIP          string         `gorm:"column:source_ip;not null"`
	Device            string         `gorm:"column:device;not null"`
	SessionID         string         `gorm:"column:session_id;not null"`
	MFAEvidence       *string        `gorm:"column:mfa_evidence"`
	Snapshot          datatypes.JSON `gorm:"column:snapshot"`
	Revision          int            `gorm:"column:revision;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;not null"`
}

func (signatureModel) TableName() string {
	return "signatures"
}

func signatureRowFromDomain(rec domain.SignatureRecord, at time.Time) signatureModel {
	return signatureModel{
		TargetType:        string(rec.TargetType),
		TargetID:          rec.TargetID,
		SignerID:          rec.SignerID,
		SignerUsername:    rec.SignerUsername,
		SignerFullName:    rec.SignerFullName,
		ReasonCode:        rec.ReasonCode,
		ReasonName:        rec.ReasonName,
		ReasonDescription: rec.ReasonDescription,
		SignatureType:     rec.SignatureType,
		RecordHash:        rec.RecordHash,
		RecordVersion:     rec.RecordVersion,
		SignedAt:          rec.SignedAt,
		TimeZone:          rec.TimeZone,
		SourceIP:          rec.SourceIP,
		Device:            rec.Device,
		SessionID:         rec.SessionID,
		MFAEvidence:       rec.MFAEvidence,
		Snapshot:          datatypes.JSON(rec.Snapshot),
		Revision:          rec.Revision,
		CreatedAt:         at,
	}
}

func (m signatureModel) toDomain() domain.SignatureRecord {
	return domain.SignatureRecord{
		ID:                m.ID,
		TargetType:        domain.Kind(m.TargetType),
		TargetID:          m.TargetID,
		SignerID:          m.SignerID,
		SignerUsername:    m.SignerUsername,
		SignerFullName:    m.SignerFullName,
		ReasonCode:        m.ReasonCode,
		ReasonName:        m.ReasonName,
		ReasonDescription: m.ReasonDescription,
		SignatureType:     m.SignatureType,
		RecordHash:        m.RecordHash,
		RecordVersion:     m.RecordVersion,
		SignedAt:          m.SignedAt,
		TimeZone:          m.TimeZone,
		SourceIP:          m.SourceIP,
		Device:            m.Device,
		SessionID:         m.SessionID,
		MFAEvidence:       m.MFAEvidence,
		Snapshot:          json.RawMessage(m.Snapshot),
		Revision:          m.Revision,
	}
}
