package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/ports"
	"github.com/go-playground/validator/v10"
)

// SignatureService records electronic signatures against an exact record
// version.
type SignatureService struct {
	ledger   ports.SignatureLedger
	users    ports.UserDirectory
	reasons  ports.ReasonCatalog
	loc      *time.Location
	codec    *SnapshotCodec
	validate *validator.Validate
	instruments
}

func NewSignatureService(ledger ports.SignatureLedger, users ports.UserDirectory, reasons ports.ReasonCatalog, loc *time.Location, opts ...Option) *SignatureService {
	if loc == nil {
		loc = time.UTC
	}
	return &SignatureService{
		ledger:      ledger,
		users:       users,
		reasons:     reasons,
		loc:         loc,
		codec:       NewSnapshotCodec(BareFieldsUpcaster{}),
		validate:    newRequestValidator(),
		instruments: newInstruments(opts),
	}
}

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Sign validates req, then checks the reviewed version and hash against the
// live record and appends the signature and its audit event atomically.
func (s *SignatureService) Sign(ctx context.Context, req domain.SignRequest) (rec domain.SignatureRecord, err error) {
	started := s.now()
	ctx, span := s.startSpan(ctx, "SignatureService.Sign", req.TargetType, req.TargetID)
	defer func() {
		s.metrics.IncSignature(outcome(err))
		s.finish(span, "sign", req.TargetType, req.TargetID, started, err)
	}()

	spec, reason, err := s.checkRequest(req)
	if err != nil {
		return domain.SignatureRecord{}, err
	}

	signer, err := s.users.FindUser(ctx, req.SignerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.SignatureRecord{}, domain.NewValidationError("signer_id", "unknown signer")
		}
		return domain.SignatureRecord{}, fmt.Errorf("load signer: %w", err)
	}
	if !signer.Active {
		return domain.SignatureRecord{}, domain.NewValidationError("signer_id", "signer is inactive")
	}

	signedAt := req.SignedAt
	if signedAt.IsZero() {
		signedAt = s.now()
	}
	signatureType := req.SignatureType
	if signatureType == "" {
		signatureType = domain.SignatureTypeConfirmation
	}
	description := reason.Description
	if reason.Code == s.reasons.CustomCode() {
		description = strings.TrimSpace(req.CustomReason)
	}
	var mfa *string
	if req.MFAEvidence != "" {
		v := req.MFAEvidence
		mfa = &v
	}
	origin := req.Origin.Normalize()

	bind := func(live domain.Entity) (domain.SignatureRecord, error) {
		if live.Version != req.RecordVersion {
			return domain.SignatureRecord{}, &domain.StaleVersionError{Kind: spec.Kind, ID: live.ID, Reviewed: req.RecordVersion, Live: live.Version}
		}
		snap := live.Snapshot()
		hash, err := snap.Hash()
		if err != nil {
			return domain.SignatureRecord{}, fmt.Errorf("record hash: %w", err)
		}
		if req.RecordHash != "" && !strings.EqualFold(req.RecordHash, hash) {
			return domain.SignatureRecord{}, &domain.StaleVersionError{Kind: spec.Kind, ID: live.ID, Reviewed: req.RecordVersion, Live: live.Version, HashMismatch: true}
		}

		snapshot := req.Snapshot
		if len(snapshot) == 0 {
			if snapshot, err = json.Marshal(snap); err != nil {
				return domain.SignatureRecord{}, fmt.Errorf("marshal snapshot: %w", err)
			}
		} else if !s.snapshotMatches(snapshot, hash) {
			return domain.SignatureRecord{}, &domain.StaleVersionError{Kind: spec.Kind, ID: live.ID, Reviewed: req.RecordVersion, Live: live.Version, HashMismatch: true}
		}

		return domain.SignatureRecord{
			SignerID:          signer.ID,
			SignerUsername:    signer.Username,
			SignerFullName:    signer.FullName,
			ReasonCode:        reason.Code,
			ReasonName:        reason.Name,
			ReasonDescription: description,
			SignatureType:     signatureType,
			RecordHash:        hash,
			RecordVersion:     live.Version,
			SignedAt:          signedAt.UTC(),
			TimeZone:          s.loc.String(),
			SourceIP:          origin.SourceIP,
			Device:            origin.Device,
			SessionID:         origin.SessionID,
			MFAEvidence:       mfa,
			Snapshot:          snapshot,
		}, nil
	}

	return s.ledger.AppendWithAudit(ctx, spec.Kind, req.TargetID, bind)
}

// snapshotMatches reports whether a caller supplied snapshot can be stored
// next to hash. A snapshot naming a record must hash to exactly hash;
// free-form review evidence is kept as given.
func (s *SignatureService) snapshotMatches(raw json.RawMessage, hash string) bool {
	snap, err := s.codec.Decode(raw)
	if err != nil || !describesRecord(snap) {
		return true
	}
	got, err := resolvedHash(snap)
	return err == nil && strings.EqualFold(got, hash)
}

func (s *SignatureService) checkRequest(req domain.SignRequest) (domain.KindSpec, domain.Reason, error) {
	if err := s.validate.Struct(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return domain.KindSpec{}, domain.Reason{}, domain.NewValidationError(fe.Field(), "failed "+fe.Tag()+" check")
		}
		return domain.KindSpec{}, domain.Reason{}, domain.NewValidationError("", err.Error())
	}

	spec, err := lookupKind(req.TargetType)
	if err != nil {
		return domain.KindSpec{}, domain.Reason{}, err
	}

	reason, ok := s.reasons.Lookup(req.ReasonCode)
	if !ok {
		return domain.KindSpec{}, domain.Reason{}, domain.NewValidationError("reason_code", fmt.Sprintf("unknown reason code %q", req.ReasonCode))
	}
	if reason.Code == s.reasons.CustomCode() && strings.TrimSpace(req.CustomReason) == "" {
		return domain.KindSpec{}, domain.Reason{}, domain.NewValidationError("custom_reason", "required with reason code "+reason.Code)
	}

	if len(req.Snapshot) > 0 && !json.Valid(req.Snapshot) {
		return domain.KindSpec{}, domain.Reason{}, domain.NewValidationError("snapshot", "must be valid json")
	}
	return spec, reason, nil
}

// Signatures lists the ledger entries for one record in signing order.
func (s *SignatureService) Signatures(ctx context.Context, kind domain.Kind, id int64) ([]domain.SignatureRecord, error) {
	spec, err := lookupKind(kind)
	if err != nil {
		return nil, err
	}
	return s.ledger.ListByTarget(ctx, spec.Kind, id)
}

func (s *SignatureService) Reasons() []domain.Reason {
	return s.reasons.Reasons()
}

func (s *SignatureService) CatalogVersion() string {
	return s.reasons.Version()
}
