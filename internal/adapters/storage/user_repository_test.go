package storage

import (
	"context"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWithKeyIsAudited(t *testing.T) {
	ctx := context.Background()
	db, wdb := openTestDB(t)
	users := NewUserRepository(db)

	now := time.Now().UTC()
	user, err := users.CreateWithKey(ctx,
		domain.Signer{Username: "jdoe", FullName: "Jane Doe"},
		domain.APIKey{TokenHash: "hash-1", Name: "cli"},
		domain.AuditEvent{Action: "USER_CREATE", Table: "users", Description: "user jdoe created", CreatedAt: now},
	)
	require.NoError(t, err)
	assert.True(t, user.Active)

	found, err := users.FindUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", found.FullName)

	key, err := users.FindByTokenHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, key.UserID)

	assertTableCount(t, ctx, wdb, "audit_events", 1)

	_, err = users.CreateWithKey(ctx,
		domain.Signer{Username: "jdoe", FullName: "Someone Else"},
		domain.APIKey{TokenHash: "hash-2", Name: "cli"},
		domain.AuditEvent{Action: "USER_CREATE", Table: "users", CreatedAt: now},
	)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assertTableCount(t, ctx, wdb, "users", 1)
	assertTableCount(t, ctx, wdb, "audit_events", 1)
}

func TestFindUserMissing(t *testing.T) {
	db, _ := openTestDB(t)
	_, err := NewUserRepository(db).FindUser(context.Background(), 5)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
