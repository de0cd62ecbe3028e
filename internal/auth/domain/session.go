package domain

import "time"

// DeviceSession is one durable row per logical login instance. The pair
// (UserID, DeviceID) is unique; IssuedAt is part of the session's identity —
// the row represents one specific refresh-token generation, so rotation
// re-stamps IssuedAt and any refresh token carrying the old value stops
// matching.
type DeviceSession struct {
	ID         string
	DeviceID   string // client UUID minted at login, immutable
	UserID     string // immutable
	IssuedAt   time.Time
	ExpiresAt  time.Time
	DeviceName string // user-agent label, set at creation, never updated
	IP         string // last origin address, re-stamped on refresh
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SessionContext is the identity a guard attaches to a request after
// validating a token against the store.
type SessionContext struct {
	UserID   string
	DeviceID string
	IssuedAt time.Time
}

// DeviceView is the "my devices" listing entry.
type DeviceView struct {
	DeviceID       string    `json:"deviceId"`
	Title          string    `json:"title"`
	IP             string    `json:"ip"`
	LastActiveDate time.Time `json:"lastActiveDate"`
}
