package domain

import (
	"encoding/json"
	"time"
)

// KindSchema is an operator-supplied JSON Schema override for one kind.
type KindSchema struct {
	Kind      Kind
	Schema    json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}
