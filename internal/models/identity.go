package models

import (
	"time"
)

// IdentityType discriminates the two account variants. It is resolved once
// at lookup time; everything downstream works against the Identity struct.
type IdentityType string

const (
	HotelManager  IdentityType = "hotel_manager"
	Administrator IdentityType = "administrator"
)

// Valid reports whether t is one of the known identity types.
func (t IdentityType) Valid() bool {
	return t == HotelManager || t == Administrator
}

// Identity is an authenticatable account: a hotel manager or an administrator.
type Identity struct {
	ID            string
	Type          IdentityType
	Email         string
	PasswordHash  string
	MFASecret     []byte // encrypted at rest, nil when unconfigured
	MFAEnabled    bool
	LoginAttempts int
	LockedUntil   *time.Time
	LastLogin     *time.Time
	IPWhitelist   []string // empty = no restriction
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MFARequired reports whether a session for this identity must pass TOTP
// verification before it is fully authenticated. Administrators always
// require MFA; hotel managers only once they have enabled it.
func (i *Identity) MFARequired() bool {
	return i.Type == Administrator || i.MFAEnabled
}

// MFAPending reports whether a secret has been provisioned but not yet
// confirmed with a first valid code.
func (i *Identity) MFAPending() bool {
	return len(i.MFASecret) > 0 && !i.MFAEnabled
}

// IsLocked reports whether the account is under a failed-attempt lockout.
func (i *Identity) IsLocked(now time.Time) bool {
	return i.LockedUntil != nil && i.LockedUntil.After(now)
}

// Principal is the authenticated identity attached to a request context
// after the auth middleware has admitted it.
type Principal struct {
	ID          string       `json:"id"`
	Type        IdentityType `json:"type"`
	MFAVerified bool         `json:"mfa_verified"`
}
