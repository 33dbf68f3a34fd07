package httpapi

import (
	"net/http"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

// sign always signs as the authenticated user. A signer_id naming someone
// else is rejected.
func (h *Handler) sign(w http.ResponseWriter, r *http.Request) {
	var req domain.SignRequest
	if err := decodeBody(r, w, &req); err != nil {
		h.handleDomainError(w, err)
		return
	}

	principal := principalFromContext(r.Context())
	if req.SignerID != 0 && req.SignerID != principal.UserID {
		h.handleDomainError(w, domain.NewValidationError("signer_id", "must be the authenticated user"))
		return
	}
	req.SignerID = principal.UserID
	req.Origin = originFromContext(r.Context())

	rec, err := h.signatures.Sign(r.Context(), req)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) listReasons(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": h.signatures.CatalogVersion(),
		"items":   h.signatures.Reasons(),
	})
}
