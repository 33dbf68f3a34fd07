package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/atvirokodosprendimai/gmpledger/internal/metrics"
	"github.com/atvirokodosprendimai/gmpledger/internal/slowlog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/atvirokodosprendimai/gmpledger/internal/core/usecase")

// instruments is shared by the services that write regulated state.
type instruments struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	slow    *slowlog.Recorder
	now     func() time.Time
}

type Option func(*instruments)

func WithLogger(log *zap.Logger) Option {
	return func(i *instruments) { i.log = log }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(i *instruments) { i.metrics = m }
}

func WithSlowLog(r *slowlog.Recorder) Option {
	return func(i *instruments) { i.slow = r }
}

func WithClock(now func() time.Time) Option {
	return func(i *instruments) { i.now = now }
}

func newInstruments(opts []Option) instruments {
	i := instruments{log: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&i)
	}
	return i
}

// outcome is the metric label for err.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStaleVersion):
		return "stale"
	case errors.Is(err, domain.ErrDuplicateSignature):
		return "duplicate"
	case errors.Is(err, domain.ErrAtomicity):
		return "atomicity"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "error"
}

func (i instruments) startSpan(ctx context.Context, name string, kind domain.Kind, id int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("gmp.kind", string(kind)),
		attribute.Int64("gmp.record_id", id),
	))
}

// finish closes span and records the call in the slow log and the logs.
func (i instruments) finish(span trace.Span, op string, kind domain.Kind, id int64, started time.Time, err error) {
	elapsed := i.now().Sub(started)

	entry := slowlog.Entry{Operation: op, Kind: string(kind), RecordID: id, Duration: elapsed, At: started.UTC()}
	if err != nil {
		entry.Err = err.Error()
	}
	if i.slow.Observe(entry) {
		i.log.Warn("slow operation",
			zap.String("op", op),
			zap.String("kind", string(kind)),
			zap.Int64("record_id", id),
			zap.Duration("elapsed", elapsed))
	}

	switch result := endSpan(span, err); result {
	case "ok":
	case "atomicity", "error":
		i.log.Error(op+" failed",
			zap.String("kind", string(kind)),
			zap.Int64("record_id", id),
			zap.Error(err))
	default:
		i.log.Debug(op+" rejected",
			zap.String("kind", string(kind)),
			zap.Int64("record_id", id),
			zap.String("outcome", result),
			zap.Error(err))
	}
}

// endSpan records the outcome of err on span, ends it and returns the outcome.
// Rejections carry only their label; failures also record the error.
func endSpan(span trace.Span, err error) string {
	result := outcome(err)
	span.SetAttributes(attribute.String("gmp.outcome", result))
	switch result {
	case "ok":
		span.SetStatus(codes.Ok, "")
	case "atomicity", "error":
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetStatus(codes.Error, result)
	}
	span.End()
	return result
}
