package models

import "time"

// SessionContext is the caller identity the gateway resolves per request.
// It replaces the old process-wide verification flags: every handler gets an
// explicit context, cached in Redis with a TTL and cleared on sign-out or
// role change.
type SessionContext struct {
	SubjectID string    `json:"subject_id"`
	Role      string    `json:"role"`
	Verified  bool      `json:"verified"`
	IssuedAt  time.Time `json:"issued_at"`
}

// IsAdmin reports whether the session carries back-office privileges.
func (s *SessionContext) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}
