package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/go-chi/chi/v5"
)

type entityRequest struct {
	Fields        json.RawMessage `json:"fields"`
	IdentityToken string          `json:"identity_token"`
}

type restoreRequest struct {
	Version int64 `json:"version"`
}

type entityResponse struct {
	Kind          domain.Kind   `json:"kind"`
	ID            int64         `json:"id"`
	Version       int64         `json:"version"`
	RecordHash    string        `json:"record_hash"`
	IdentityToken string        `json:"identity_token"`
	Fields        domain.Fields `json:"fields"`
	CreatedAt     string        `json:"created_at"`
	ModifiedAt    string        `json:"modified_at"`
	ModifiedBy    *int64        `json:"modified_by"`
}

func toEntityResponse(ent domain.Entity) (entityResponse, error) {
	hash, err := ent.Snapshot().Hash()
	if err != nil {
		return entityResponse{}, err
	}
	return entityResponse{
		Kind:          ent.Kind,
		ID:            ent.ID,
		Version:       ent.Version,
		RecordHash:    hash,
		IdentityToken: ent.IdentityToken,
		Fields:        ent.Fields,
		CreatedAt:     formatTime(ent.CreatedAt),
		ModifiedAt:    formatTime(ent.ModifiedAt),
		ModifiedBy:    ent.ModifiedBy.Ptr(),
	}, nil
}

func (h *Handler) writeEntity(w http.ResponseWriter, status int, ent domain.Entity) {
	resp, err := toEntityResponse(ent)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, status, resp)
}

func (h *Handler) createEntity(w http.ResponseWriter, r *http.Request) {
	h.writeEntityFromBody(w, r, 0, false)
}

func (h *Handler) replaceEntity(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeEntityFromBody(w, r, id, true)
}

// writeEntityFromBody validates the body against the kind schema before the
// gateway sees it.
func (h *Handler) writeEntityFromBody(w http.ResponseWriter, r *http.Request, id int64, isUpdate bool) {
	kind := domain.Kind(chi.URLParam(r, "kind"))

	var req entityRequest
	if err := decodeBody(r, w, &req); err != nil {
		h.handleDomainError(w, err)
		return
	}
	fields, err := decodeFields(req.Fields)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	if err := h.schemas.Validate(r.Context(), kind, req.Fields); err != nil {
		h.handleDomainError(w, err)
		return
	}

	ent := domain.Entity{
		Kind:          kind,
		ID:            id,
		Fields:        domain.Fields(fields),
		IdentityToken: req.IdentityToken,
	}
	saved, err := h.gateway.Upsert(r.Context(), ent, isUpdate, actorFromContext(r.Context()), originFromContext(r.Context()))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if !isUpdate {
		status = http.StatusCreated
	}
	h.writeEntity(w, status, saved)
}

func (h *Handler) getEntity(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	ent, err := h.gateway.Get(r.Context(), domain.Kind(chi.URLParam(r, "kind")), id)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeEntity(w, http.StatusOK, ent)
}

func (h *Handler) deleteEntity(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	kind := domain.Kind(chi.URLParam(r, "kind"))
	if err := h.gateway.Delete(r.Context(), kind, id, actorFromContext(r.Context()), originFromContext(r.Context())); err != nil {
		h.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEntities(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	var afterID int64
	if raw := r.URL.Query().Get("after_id"); raw != "" {
		if afterID, err = parseID(raw, "after_id"); err != nil {
			h.handleDomainError(w, err)
			return
		}
	}

	items, err := h.gateway.List(r.Context(), domain.Kind(chi.URLParam(r, "kind")), domain.EntityListFilter{AfterID: afterID, Limit: limit})
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	out := make([]entityResponse, 0, len(items))
	for _, ent := range items {
		resp, err := toEntityResponse(ent)
		if err != nil {
			h.handleDomainError(w, err)
			return
		}
		out = append(out, resp)
	}
	var next *int64
	if len(items) > 0 {
		last := items[len(items)-1].ID
		next = &last
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "next_after_id": next})
}

func (h *Handler) entityHistory(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	entries, err := h.history.History(r.Context(), domain.Kind(chi.URLParam(r, "kind")), id)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *Handler) restoreEntity(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	var req restoreRequest
	if err := decodeBody(r, w, &req); err != nil {
		h.handleDomainError(w, err)
		return
	}
	if req.Version <= 0 {
		h.handleDomainError(w, domain.NewValidationError("version", "must be a positive integer"))
		return
	}

	ent, err := h.rollback.RestoreVersion(r.Context(), domain.Kind(chi.URLParam(r, "kind")), id, req.Version,
		actorFromContext(r.Context()), originFromContext(r.Context()))
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	h.writeEntity(w, http.StatusOK, ent)
}

func (h *Handler) entitySignatures(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	sigs, err := h.signatures.Signatures(r.Context(), domain.Kind(chi.URLParam(r, "kind")), id)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": sigs})
}
