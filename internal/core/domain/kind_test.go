package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTreatsMissingAndMismatchedAsNull(t *testing.T) {
	spec, ok := LookupKind(KindMachine)
	require.True(t, ok)

	fields := spec.Resolve(map[string]any{
		"code":         "M-100",
		"name":         42,
		"install_date": "not a date",
		"unknown":      "dropped",
	})

	assert.Equal(t, "M-100", fields["code"])
	assert.Nil(t, fields["name"])
	assert.Nil(t, fields["install_date"])
	assert.Contains(t, fields, "location")
	assert.Nil(t, fields["location"])
	assert.NotContains(t, fields, "unknown")
	assert.Len(t, fields, len(spec.Fields))
}

func TestResolveCoercesJSONNumbers(t *testing.T) {
	spec, _ := LookupKind(KindWorkOrder)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"machine_id": 42, "assigned_to": 1.5, "title": "PM"}`), &raw))
	fields := spec.Resolve(raw)

	id, ok := fields.Int("machine_id")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Nil(t, fields["assigned_to"])
}

func TestResolveNormalizesTimes(t *testing.T) {
	spec, _ := LookupKind(KindCalibration)
	local := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("EET", 2*3600))

	fields := spec.Resolve(map[string]any{
		"calibration_date": local,
		"next_due":         "2027-03-01",
	})

	assert.Equal(t, "2026-03-01T08:00:00Z", fields["calibration_date"])
	assert.Equal(t, "2027-03-01T00:00:00Z", fields["next_due"])
	ts, ok := fields.Time("calibration_date")
	require.True(t, ok)
	assert.True(t, ts.Equal(local))
}

func TestActionNamesFollowPrefix(t *testing.T) {
	spec, _ := LookupKind(KindMachine)
	assert.Equal(t, "MCH_CREATE", spec.Action(OpCreate))
	assert.Equal(t, "machines", spec.Table)

	wo, _ := LookupKind(KindWorkOrder)
	assert.Equal(t, "WO_SIGN", wo.Action(OpSign))
}

func TestKindByTable(t *testing.T) {
	spec, ok := KindByTable("work_orders")
	require.True(t, ok)
	assert.Equal(t, KindWorkOrder, spec.Kind)

	_, ok = KindByTable("audit_events")
	assert.False(t, ok)
}

func TestKindsSorted(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 5)
	for i := 1; i < len(kinds); i++ {
		assert.Less(t, string(kinds[i-1].Kind), string(kinds[i].Kind))
	}
}

func TestResolveRejectsFloatsOutsideInt64(t *testing.T) {
	spec, _ := LookupKind(KindComponent)

	fields := spec.Resolve(map[string]any{"machine_id": float64(1 << 63)})
	assert.Nil(t, fields["machine_id"])

	fields = spec.Resolve(map[string]any{"machine_id": float64(-1 << 63)})
	assert.Equal(t, int64(-1<<63), fields["machine_id"])
}

func TestDecodeFieldMapKeepsLargeIntegers(t *testing.T) {
	spec, _ := LookupKind(KindComponent)

	raw, err := DecodeFieldMap([]byte(`{"machine_id": 9007199254740993, "code": "C-1"}`))
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), raw["machine_id"])

	fields := spec.Resolve(raw)
	assert.Equal(t, int64(9007199254740993), fields["machine_id"])

	empty, err := DecodeFieldMap(nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = DecodeFieldMap([]byte(`[1,2]`))
	assert.Error(t, err)
}
