package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/usecase"
	"go.uber.org/zap"
)

type errorBody struct {
	Error       string   `json:"error"`
	Code        string   `json:"code"`
	Field       string   `json:"field,omitempty"`
	Details     []string `json:"details,omitempty"`
	LiveVersion int64    `json:"live_version,omitempty"`
	Retryable   bool     `json:"retryable,omitempty"`
}

func (h *Handler) handleDomainError(w http.ResponseWriter, err error) {
	var (
		validation *domain.ValidationError
		schema     *domain.SchemaViolationError
		stale      *domain.StaleVersionError
		atomicity  *domain.AtomicityError
	)
	switch {
	case errors.Is(err, usecase.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.As(err, &schema):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error: "fields do not match the kind schema", Code: "schema_violation", Details: schema.Errors,
		})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Code: "validation", Field: validation.Field})
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &stale):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "stale_version", LiveVersion: stale.Live})
	case errors.Is(err, domain.ErrDuplicateSignature):
		writeError(w, http.StatusConflict, "duplicate_signature", err.Error())
	case errors.As(err, &atomicity):
		h.log.Error("atomic commit failed", zap.String("op", atomicity.Op), zap.Error(atomicity.Err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error: "the change was not saved, re-read the record before retrying", Code: "atomicity", Retryable: true,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, "canceled", "request canceled")
	default:
		h.log.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		zap.L().Error("encode response", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error","code":"internal"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(payload, '\n')); err != nil {
		zap.L().Debug("write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

// decodeBody reads exactly one JSON value into dst. Numbers stay json.Number
// so integer fields keep their precision.
func decodeBody(r *http.Request, w http.ResponseWriter, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", "invalid json body: "+err.Error())
	}
	if err := ensureEOF(dec); err != nil {
		return domain.NewValidationError("body", err.Error())
	}
	return nil
}

func ensureEOF(dec *json.Decoder) error {
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return errors.New("invalid json body: trailing data")
	}
	return nil
}

func decodeFields(raw json.RawMessage) (map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, domain.NewValidationError("fields", "is required")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, domain.NewValidationError("fields", "must be a json object")
	}
	return fields, nil
}

func parseLimit(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, domain.NewValidationError("limit", "must be a positive integer")
	}
	return n, nil
}

func parseID(raw, field string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, domain.NewValidationError(field, "must be a positive integer")
	}
	return n, nil
}

func parseOptionalID(raw, field string) (*int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	n, err := parseID(raw, field)
	if err != nil {
		return nil, err
	}
	return &n, nil
}
