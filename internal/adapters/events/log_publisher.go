package events

import (
	"context"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"go.uber.org/zap"
)

// LogPublisher writes outbox events to the service log. It is the default
// when no downstream consumer is configured.
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	p.log.Info("outbox publish",
		zap.String("topic", topic),
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.String("aggregate_type", event.AggregateType),
		zap.Int64("aggregate_id", event.AggregateID),
		zap.Int64("version", event.Version),
		zap.Int64("actor_id", int64(event.ActorID)))
	return nil
}
