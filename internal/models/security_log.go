package models

import "time"

// Security log actions. Kept as constants so the audit trail stays greppable.
const (
	ActionLoginSuccess       = "login_success"
	ActionLoginFailed        = "login_failed"
	ActionLoginLocked        = "login_locked"
	ActionLockoutTriggered   = "lockout_triggered"
	ActionLogout             = "logout"
	ActionMFASetup           = "mfa_setup"
	ActionMFAEnabled         = "mfa_enabled"
	ActionMFAVerified        = "mfa_verified"
	ActionMFAFailed          = "mfa_failed"
	ActionMFADisabled        = "mfa_disabled"
	ActionMFAReset           = "mfa_reset"
	ActionPasswordReset      = "password_reset"
	ActionPasswordSetup      = "password_setup"
	ActionManagerProvisioned = "manager_provisioned"
	ActionAuthRejected       = "auth_rejected"
)

// SecurityLogEntry is one append-only audit record. Entries are written once
// and never mutated. Details must never contain full session tokens or
// secrets; token fingerprints only.
type SecurityLogEntry struct {
	ID           string
	Timestamp    time.Time
	IdentityID   *string // nil when the actor could not be resolved
	IdentityType IdentityType
	Action       string
	IPAddress    string
	UserAgent    string
	Details      map[string]any
}
