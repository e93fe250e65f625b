package models

import "time"

// Session is one login session. The raw bearer token is returned to the
// client exactly once at creation; only its SHA-256 digest is stored here.
//
// Lifecycle: Created (mfa_verified=false unless MFA is not required) ->
// optionally MFAVerified -> Invalidated via logout, expiry, or supersession
// by a newer session for the same identity.
type Session struct {
	ID           string
	TokenHash    string // hex SHA-256 of the raw token
	IdentityID   string
	IdentityType IdentityType
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	MFAVerified  bool
	IsActive     bool
}

// Expired reports whether the session has passed its expiry. Expiry is
// enforced passively at read time; no background sweep is needed for
// correctness.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
