package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/innkeephq/innkeep/internal/models"
)

// Token purposes. Setup tokens provision a first password for newly created
// accounts; reset tokens come out of the forgot-password flow.
const (
	PurposePasswordReset = "password_reset"
	PurposePasswordSetup = "password_setup"
)

// ResetTokenManager issues and validates short-lived signed tokens for the
// password setup and reset flows. Tokens are bound to a fingerprint of the
// identity's current password hash, so a token stops validating the moment
// the password changes - no server-side state needed.
type ResetTokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewResetTokenManager(secret string, ttl time.Duration) *ResetTokenManager {
	return &ResetTokenManager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

type resetClaims struct {
	jwt.RegisteredClaims
	IdentityType string `json:"ityp"`
	PasswordFP   string `json:"pfp"`
	Purpose      string `json:"purpose"`
}

// ResetClaims is what a validated token asserts about its bearer.
type ResetClaims struct {
	IdentityID   string
	IdentityType models.IdentityType
	PasswordFP   string
}

// Generate issues a token for identity with the given purpose.
func (m *ResetTokenManager) Generate(identity *models.Identity, purpose string) (string, error) {
	if purpose != PurposePasswordReset && purpose != PurposePasswordSetup {
		return "", fmt.Errorf("unknown token purpose %q", purpose)
	}

	now := time.Now()
	claims := resetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		IdentityType: string(identity.Type),
		PasswordFP:   PasswordFingerprint(identity.PasswordHash),
		Purpose:      purpose,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token, requiring the expected purpose.
// Callers must additionally compare PasswordFP against the identity's
// current hash fingerprint before honoring the token.
func (m *ResetTokenManager) Validate(tokenString, purpose string) (*ResetClaims, error) {
	var claims resetClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, models.ErrUnauthorized
	}

	if claims.Purpose != purpose {
		return nil, models.ErrUnauthorized
	}

	identityType := models.IdentityType(claims.IdentityType)
	if !identityType.Valid() || claims.Subject == "" {
		return nil, models.ErrUnauthorized
	}

	return &ResetClaims{
		IdentityID:   claims.Subject,
		IdentityType: identityType,
		PasswordFP:   claims.PasswordFP,
	}, nil
}

// PasswordFingerprint derives a short non-reversible fingerprint from a
// password hash, used to tie reset tokens to the hash they were issued for.
func PasswordFingerprint(passwordHash string) string {
	sum := sha256.Sum256([]byte(passwordHash))
	return hex.EncodeToString(sum[:])[:12]
}
