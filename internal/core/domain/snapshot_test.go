package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotHashTracksVersionAndFields(t *testing.T) {
	base := Entity{Kind: KindWorkOrder, ID: 17, Version: 3, Fields: Fields{"title": "PM", "status": "open"}}

	h1, err := base.Snapshot().Hash()
	require.NoError(t, err)

	sameContentLater := base
	sameContentLater.ModifiedAt = time.Now()
	h2, err := sameContentLater.Snapshot().Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	bumped := base
	bumped.Version = 4
	h3, err := bumped.Snapshot().Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	edited := base
	edited.Fields = Fields{"title": "PM", "status": "closed"}
	h4, err := edited.Snapshot().Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)
}

func TestIdentityTokenDiffersFromRecordHash(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fields := Fields{"code": "M-100", "name": "Autoclave"}

	token, err := NewIdentityToken(KindMachine, fields, at)
	require.NoError(t, err)
	hash, err := Entity{Kind: KindMachine, ID: 42, Version: 1, Fields: fields}.Snapshot().Hash()
	require.NoError(t, err)

	assert.NotEqual(t, token, hash)

	again, err := NewIdentityToken(KindMachine, fields, at)
	require.NoError(t, err)
	assert.Equal(t, token, again)
}

func TestOriginNormalizeDefaultsToSystem(t *testing.T) {
	o := Origin{SourceIP: "10.0.0.5"}.Normalize()
	assert.Equal(t, "10.0.0.5", o.SourceIP)
	assert.Equal(t, SystemOrigin, o.Device)
	assert.Equal(t, SystemOrigin, o.SessionID)
}

func TestNewMutationAuditDescribesDelete(t *testing.T) {
	spec, _ := LookupKind(KindMachine)
	ev := NewMutationAudit(spec, OpDelete, Entity{Kind: KindMachine, ID: 42, Version: 2}, 7, Origin{}, time.Now(), nil)

	assert.Equal(t, "MCH_DELETE", ev.Action)
	assert.Equal(t, "machine 42 deleted from table machines", ev.Description)
	require.NotNil(t, ev.RecordID)
	assert.Equal(t, int64(42), *ev.RecordID)
	assert.Equal(t, ActorID(7), ev.ActorID)
	assert.Equal(t, SeverityAudit, ev.Severity)
}
