package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

type FieldType string

const (
	FieldString  FieldType = "string"
	FieldInteger FieldType = "integer"
	FieldDecimal FieldType = "decimal"
	FieldBool    FieldType = "bool"
	FieldTime    FieldType = "time"
)

const dateLayout = "2006-01-02"

// resolve coerces v into the storage representation of t, or nil.
// Integers are int64, decimals float64, times RFC 3339 UTC strings.
func (t FieldType) resolve(v any) any {
	switch t {
	case FieldString:
		if s, ok := v.(string); ok {
			return s
		}
	case FieldInteger:
		if n, ok := toInt64(v); ok {
			return n
		}
	case FieldDecimal:
		if f, ok := toFloat64(v); ok {
			return f
		}
	case FieldBool:
		if b, ok := v.(bool); ok {
			return b
		}
	case FieldTime:
		if ts, ok := toTime(v); ok {
			return ts.UTC().Format(time.RFC3339Nano)
		}
	}
	return nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= 1<<63 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case time.Time:
		return ts, !ts.IsZero()
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			return parsed, true
		}
		if parsed, err := time.Parse(dateLayout, ts); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Fields holds resolved field values keyed by field name. A nil value is a
// storage null.
type Fields map[string]any

func (f Fields) String(name string) (string, bool) {
	s, ok := f[name].(string)
	return s, ok
}

func (f Fields) Int(name string) (int64, bool) {
	n, ok := f[name].(int64)
	return n, ok
}

func (f Fields) Float(name string) (float64, bool) {
	n, ok := f[name].(float64)
	return n, ok
}

func (f Fields) Bool(name string) (bool, bool) {
	b, ok := f[name].(bool)
	return b, ok
}

func (f Fields) Time(name string) (time.Time, bool) {
	s, ok := f[name].(string)
	if !ok {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	return ts, err == nil
}

// DecodeFieldMap decodes a JSON object keeping numbers as json.Number, so
// integers beyond 2^53 reach Resolve unchanged. Empty input yields nil.
func DecodeFieldMap(raw []byte) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return out, nil
}

func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
