package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
)

func (h *Handler) queryAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := auditFilterFromQuery(r)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}
	events, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		h.handleDomainError(w, err)
		return
	}

	var next *int64
	if len(events) > 0 {
		last := events[len(events)-1].ID
		next = &last
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": events, "next_after_id": next})
}

func auditFilterFromQuery(r *http.Request) (domain.AuditFilter, error) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		Table:  strings.TrimSpace(q.Get("table")),
		Action: strings.ToUpper(strings.TrimSpace(q.Get("action"))),
	}
	if filter.Table == "" {
		filter.Table = strings.TrimSpace(q.Get("kind"))
	}

	var err error
	if filter.RecordID, err = parseOptionalID(q.Get("record_id"), "record_id"); err != nil {
		return domain.AuditFilter{}, err
	}
	if filter.ActorID, err = parseOptionalID(q.Get("actor_id"), "actor_id"); err != nil {
		return domain.AuditFilter{}, err
	}
	if raw := q.Get("after_id"); raw != "" {
		if filter.AfterID, err = parseID(raw, "after_id"); err != nil {
			return domain.AuditFilter{}, err
		}
	}
	if filter.Limit, err = parseLimit(q.Get("limit")); err != nil {
		return domain.AuditFilter{}, err
	}
	if filter.From, err = parseTime(q.Get("from"), "from"); err != nil {
		return domain.AuditFilter{}, err
	}
	if filter.To, err = parseTime(q.Get("to"), "to"); err != nil {
		return domain.AuditFilter{}, err
	}
	return filter, nil
}

func parseTime(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be an RFC 3339 timestamp")
	}
	return t.UTC(), nil
}
