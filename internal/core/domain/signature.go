package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

const SignatureTypeConfirmation = "confirmation"

// Reason is one entry of the reason-code catalog.
type Reason struct {
	Code        string `json:"code" mapstructure:"code"`
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description" mapstructure:"description"`
}

// Signer is the user directory view captured at signing time.
type Signer struct {
	ID       int64
	Username string
	FullName string
	Active   bool
}

// SignRequest is what a signer submits. RecordHash and Snapshot are optional.
type SignRequest struct {
	TargetType    Kind            `json:"target_type" validate:"required"`
	TargetID      int64           `json:"target_id" validate:"required,gt=0"`
	SignerID      int64           `json:"signer_id" validate:"required,gt=0"`
	ReasonCode    string          `json:"reason_code" validate:"required,max=64"`
	CustomReason  string          `json:"custom_reason" validate:"max=2000"`
	SignatureType string          `json:"signature_type" validate:"omitempty,max=64"`
	RecordHash    string          `json:"record_hash" validate:"omitempty,hexadecimal,len=64"`
	RecordVersion int64           `json:"record_version" validate:"required,gt=0"`
	SignedAt      time.Time       `json:"signed_at"`
	Origin        Origin          `json:"-"`
	MFAEvidence   string          `json:"mfa_evidence" validate:"max=512"`
	Snapshot      json.RawMessage `json:"snapshot"`
}

// SignatureRecord is an immutable e-signature bound to one record version.
type SignatureRecord struct {
	ID                int64           `json:"id"`
	TargetType        Kind            `json:"target_type"`
	TargetID          int64           `json:"target_id"`
	SignerID          int64           `json:"signer_id"`
	SignerUsername    string          `json:"signer_username"`
	SignerFullName    string          `json:"signer_full_name"`
	ReasonCode        string          `json:"reason_code"`
	ReasonName        string          `json:"reason_name"`
	ReasonDescription string          `json:"reason_description"`
	SignatureType     string          `json:"signature_type"`
	RecordHash        string          `json:"record_hash"`
	RecordVersion     int64           `json:"record_version"`
	SignedAt          time.Time       `json:"signed_at"`
	TimeZone          string          `json:"time_zone"`
	SourceIP          string          `json:"source_ip"`
	Device            string          `json:"device"`
	SessionID         string          `json:"session_id"`
	MFAEvidence       *string         `json:"mfa_evidence,omitempty"`
	Snapshot          json.RawMessage `json:"snapshot,omitempty"`
	Revision          int             `json:"revision"`
}

// NewSignatureAudit builds the audit event that accompanies rec.
func NewSignatureAudit(spec KindSpec, rec SignatureRecord, at time.Time) AuditEvent {
	id := rec.TargetID
	return AuditEvent{
		ActorID:       ActorID(rec.SignerID),
		Action:        spec.Action(OpSign),
		Table:         spec.Table,
		RecordID:      &id,
		RecordVersion: rec.RecordVersion,
		Description: fmt.Sprintf("%s %d signed by %s at version %d (reason %s, %s)",
			spec.Kind, rec.TargetID, rec.SignerUsername, rec.RecordVersion, rec.ReasonCode, rec.SignatureType),
		SourceIP:  rec.SourceIP,
		Severity:  SeverityAudit,
		Device:    rec.Device,
		SessionID: rec.SessionID,
		Snapshot:  rec.Snapshot,
		CreatedAt: at,
	}
}
