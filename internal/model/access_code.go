package model

import "time"

// AccessCode is a room record keyed by its 4-digit code. The code doubles as
// the room id for every item and price entry of the room.
type AccessCode struct {
	Code       string     `json:"code"`
	Active     *bool      `json:"active"`
	LastActive *time.Time `json:"last_active"`
}

// IsActive reports whether the code grants sessions. A missing flag counts as active.
func (c *AccessCode) IsActive() bool {
	return c.Active == nil || *c.Active
}

// Identity is an anonymous backend identity established before any document access.
type Identity struct {
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"created_at"`
}
