package handlers

// MFA Setup DTOs

// MFASetupResponse contains the provisioning URI and QR code for enrollment
type MFASetupResponse struct {
	OTPAuthURL string `json:"otpauth_url"` // For manual entry into an authenticator
	QRCode     string `json:"qr_code"`     // Data URL for the scannable QR image
}

// MFACodeRequest carries a single TOTP code
type MFACodeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// DisableMFARequest requires the account password as re-authentication
type DisableMFARequest struct {
	Password string `json:"password" validate:"required"`
}

// ResetMFARequest names the hotel manager whose MFA an admin is resetting
type ResetMFARequest struct {
	HotelManagerID string `json:"hotel_manager_id" validate:"required,uuid"`
}

// MFAActionResponse is the generic success envelope for MFA mutations
type MFAActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
