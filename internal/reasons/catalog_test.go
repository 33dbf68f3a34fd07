package reasons

import (
	"testing"

	"github.com/atvirokodosprendimai/gmpledger/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := New("", "", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultVersion, c.Version())
	assert.Equal(t, "CUSTOM", c.CustomCode())

	r, ok := c.Lookup("wo_close")
	require.True(t, ok)
	assert.Equal(t, "Work order closure", r.Name)

	_, ok = c.Lookup("CUSTOM")
	assert.True(t, ok)
	_, ok = c.Lookup("BOGUS")
	assert.False(t, ok)

	all := c.Reasons()
	require.Len(t, all, len(Defaults)+1)
	assert.Equal(t, "APPROVE", all[0].Code)
	assert.Equal(t, "CUSTOM", all[len(all)-1].Code)
}

func TestRejectsBadCatalogs(t *testing.T) {
	_, err := New("v1", "OTHER", []domain.Reason{{Code: "other"}})
	assert.Error(t, err)

	_, err = New("v1", "", []domain.Reason{{Code: "A"}, {Code: "a"}})
	assert.Error(t, err)

	_, err = New("v1", "", []domain.Reason{{Code: " "}})
	assert.Error(t, err)
}
