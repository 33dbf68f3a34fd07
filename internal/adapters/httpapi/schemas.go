package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/go-chi/chi/v5"
)

type schemaResponse struct {
	Kind      domain.Kind     `json:"kind"`
	Schema    json.RawMessage `json:"schema"`
	Override  bool            `json:"override"`
	UpdatedAt string          `json:"updated_at,omitempty"`
}

func toSchemaResponse(s domain.KindSchema) schemaResponse {
	return schemaResponse{
		Kind:      s.Kind,
		Schema:    s.Schema,
		Override:  !s.UpdatedAt.IsZero(),
		UpdatedAt: formatTime(s.UpdatedAt),
	}
}

func (h *Handler) getSchema(w http.ResponseWriter, r *http.Request) {
	s, err := h.schemas.Get(r.Context(), domain.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSchemaResponse(s))
}

// putSchema takes the raw JSON Schema document as the request body.
func (h *Handler) putSchema(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBodySize))
	if err != nil {
		h.handleDomainError(w, domain.NewValidationError("body", "could not read body"))
		return
	}
	s, err := h.schemas.Upsert(r.Context(), domain.Kind(chi.URLParam(r, "kind")), body)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSchemaResponse(s))
}

func (h *Handler) deleteSchema(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.schemas.Delete(r.Context(), domain.Kind(chi.URLParam(r, "kind")))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "not_found", "no schema override for this kind")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
