package httpapi

import (
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/usecase"
	"github.com/atvirokodosprendimai/gmpledger/internal/slowlog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	timeFormat      = "2006-01-02T15:04:05.999999999Z07:00"
	maxJSONBodySize = 1 << 20
)

// Services are the use cases the HTTP layer exposes.
type Services struct {
	Gateway    *usecase.MutationGateway
	Signatures *usecase.SignatureService
	Rollback   *usecase.RollbackCoordinator
	History    *usecase.HistoryService
	Audit      *usecase.AuditService
	Schemas    *usecase.SchemaService
	Auth       *usecase.AuthService
	SlowLog    *slowlog.Recorder
	Metrics    http.Handler
	Logger     *zap.Logger
}

type Handler struct {
	gateway    *usecase.MutationGateway
	signatures *usecase.SignatureService
	rollback   *usecase.RollbackCoordinator
	history    *usecase.HistoryService
	audit      *usecase.AuditService
	schemas    *usecase.SchemaService
	auth       *usecase.AuthService
	slow       *slowlog.Recorder
	metrics    http.Handler
	log        *zap.Logger
}

func NewHandler(s Services) *Handler {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		gateway:    s.Gateway,
		signatures: s.Signatures,
		rollback:   s.Rollback,
		history:    s.History,
		audit:      s.Audit,
		schemas:    s.Schemas,
		auth:       s.Auth,
		slow:       s.SlowLog,
		metrics:    s.Metrics,
		log:        log,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)
		pr.Get("/v1/kinds", h.listKinds)

		pr.Route("/v1/entities/{kind}", func(er chi.Router) {
			er.Get("/", h.listEntities)
			er.Post("/", h.createEntity)
			er.Get("/{id}", h.getEntity)
			er.Put("/{id}", h.replaceEntity)
			er.Delete("/{id}", h.deleteEntity)
			er.Get("/{id}/history", h.entityHistory)
			er.Post("/{id}/restore", h.restoreEntity)
			er.Get("/{id}/signatures", h.entitySignatures)
		})

		pr.Post("/v1/signatures", h.sign)
		pr.Get("/v1/reasons", h.listReasons)
		pr.Get("/v1/audit", h.queryAudit)

		pr.Get("/v1/schemas/{kind}", h.getSchema)
		pr.Put("/v1/schemas/{kind}", h.putSchema)
		pr.Delete("/v1/schemas/{kind}", h.deleteSchema)

		pr.Get("/v1/diagnostics/slow-operations", h.slowOperations)
	})

	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

type kindResponse struct {
	Kind        domain.Kind `json:"kind"`
	Table       string      `json:"table"`
	AuditPrefix string      `json:"audit_prefix"`
	Fields      []fieldInfo `json:"fields"`
}

type fieldInfo struct {
	Name     string           `json:"name"`
	Type     domain.FieldType `json:"type"`
	Required bool             `json:"required"`
}

func (h *Handler) listKinds(w http.ResponseWriter, _ *http.Request) {
	specs := domain.Kinds()
	out := make([]kindResponse, 0, len(specs))
	for _, spec := range specs {
		fields := make([]fieldInfo, 0, len(spec.Fields))
		for _, f := range spec.Fields {
			fields = append(fields, fieldInfo{Name: f.Name, Type: f.Type, Required: f.Required})
		}
		out = append(out, kindResponse{Kind: spec.Kind, Table: spec.Table, AuditPrefix: spec.AuditPrefix, Fields: fields})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (h *Handler) slowOperations(w http.ResponseWriter, _ *http.Request) {
	entries := h.slow.Snapshot()
	if entries == nil {
		entries = []slowlog.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"threshold_ms": h.slow.Threshold().Milliseconds(),
		"items":        entries,
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}
