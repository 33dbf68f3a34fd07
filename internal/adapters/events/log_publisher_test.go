package events

import (
	"context"
	"testing"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogPublisherLogsEnvelope(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	pub := NewLogPublisher(zap.New(core))

	require.NoError(t, pub.Publish(context.Background(), "gmp.machines.MCH_CREATE", domain.EventEnvelope{
		EventID: "evt-1", EventType: "MCH_CREATE", AggregateType: "machines", AggregateID: 42,
	}))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "gmp.machines.MCH_CREATE", fields["topic"])
	assert.Equal(t, int64(42), fields["aggregate_id"])
}
