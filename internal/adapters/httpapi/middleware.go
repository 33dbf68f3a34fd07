package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/core/usecase"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type ctxKey string

const (
	principalCtxKey ctxKey = "principal"
	originCtxKey    ctxKey = "origin"
)

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		principal, err := h.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
				return
			}
			h.log.Error("authenticate", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), principalCtxKey, principal)
		ctx = context.WithValue(ctx, originCtxKey, originFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// originFromRequest reads the caller's network origin. RealIP has already
// rewritten RemoteAddr from X-Forwarded-For / X-Real-IP.
func originFromRequest(r *http.Request) domain.Origin {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	device := r.Header.Get("X-Device-Id")
	if device == "" {
		device = r.Header.Get("User-Agent")
	}
	return domain.Origin{
		SourceIP:  ip,
		Device:    device,
		SessionID: r.Header.Get("X-Session-Id"),
	}.Normalize()
}

func principalFromContext(ctx context.Context) domain.Principal {
	p, _ := ctx.Value(principalCtxKey).(domain.Principal)
	return p
}

func actorFromContext(ctx context.Context) domain.ActorID {
	return domain.ActorID(principalFromContext(ctx).UserID)
}

func originFromContext(ctx context.Context) domain.Origin {
	o, ok := ctx.Value(originCtxKey).(domain.Origin)
	if !ok {
		return domain.Origin{}.Normalize()
	}
	return o
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.log.Info("http request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(started)))
	})
}
