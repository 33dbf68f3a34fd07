package domain

import "strings"

// SystemOrigin fills every origin attribute the caller did not provide.
const SystemOrigin = "system"

// Origin is where a call came from.
type Origin struct {
	SourceIP  string
	Device    string
	SessionID string
}

func (o Origin) Normalize() Origin {
	o.SourceIP = orSystem(o.SourceIP)
	o.Device = orSystem(o.Device)
	o.SessionID = orSystem(o.SessionID)
	return o
}

func orSystem(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return SystemOrigin
	}
	return v
}
