package domain

import "time"

type APIKey struct {
	TokenHash string
	UserID    int64
	Name      string
	Active    bool
	CreatedAt time.Time
}

// Principal is the authenticated caller.
type Principal struct {
	UserID   int64
	Username string
	KeyName  string
}
