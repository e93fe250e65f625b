package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	totpPeriod     = 30
	totpSecretSize = 32

	// totpSkew allows codes from ±2 time steps, tolerating ~±60s of client
	// clock drift.
	totpSkew = 2
)

// TOTPManager handles TOTP secret provisioning, authenticated encryption of
// stored secrets, and code validation.
//
// Secrets are sealed with AES-256-GCM under a versioned key set: every
// ciphertext records the ID of the key that sealed it, decryption resolves
// the key by ID, and new encryptions always use the active key. Rotating
// means adding a key, flipping the active ID, and re-sealing rows offline.
// There is no plaintext fallback: a blob that does not parse is an error.
type TOTPManager struct {
	keys        map[string][]byte
	activeKeyID string
	issuer      string
}

// NewTOTPManager creates a TOTP manager. Every key must be exactly 32 bytes
// and activeKeyID must name one of them.
func NewTOTPManager(keys map[string][]byte, activeKeyID, issuer string) (*TOTPManager, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one encryption key is required")
	}
	for id, key := range keys {
		if len(key) != 32 {
			return nil, fmt.Errorf("encryption key %q must be exactly 32 bytes, got %d", id, len(key))
		}
	}
	if _, ok := keys[activeKeyID]; !ok {
		return nil, fmt.Errorf("active key %q not present in key set", activeKeyID)
	}

	return &TOTPManager{
		keys:        keys,
		activeKeyID: activeKeyID,
		issuer:      issuer,
	}, nil
}

// ProvisionedSecret is the result of generating a new TOTP secret. The
// encrypted blob is what gets persisted; the URL and QR are shown to the
// user exactly once during provisioning.
type ProvisionedSecret struct {
	Encrypted []byte
	URL       string
	QRDataURL string
}

// ProvisionSecret generates a fresh base32 secret for accountEmail, builds
// the otpauth provisioning URI, renders it as a scannable PNG data URL, and
// seals the secret for storage.
func (tm *TOTPManager) ProvisionSecret(accountEmail string) (*ProvisionedSecret, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      tm.issuer,
		AccountName: accountEmail,
		SecretSize:  totpSecretSize,
		Period:      totpPeriod,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	encrypted, err := tm.EncryptSecret(key.Secret())
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt secret: %w", err)
	}

	qr, err := qrcode.New(key.URL(), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %w", err)
	}
	qrImage, err := qr.PNG(256)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	return &ProvisionedSecret{
		Encrypted: encrypted,
		URL:       key.URL(),
		QRDataURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(qrImage),
	}, nil
}

// EncryptSecret seals a base32 secret with the active key.
// Blob layout: [1-byte key ID length][key ID][12-byte nonce][ciphertext].
func (tm *TOTPManager) EncryptSecret(secret string) ([]byte, error) {
	keyID := tm.activeKeyID
	if len(keyID) > 255 {
		return nil, fmt.Errorf("key ID too long")
	}

	gcm, err := tm.gcmFor(keyID)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	blob := make([]byte, 0, 1+len(keyID)+len(nonce)+len(secret)+gcm.Overhead())
	blob = append(blob, byte(len(keyID)))
	blob = append(blob, keyID...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, []byte(secret), []byte(keyID))

	return blob, nil
}

// DecryptSecret opens a sealed secret, resolving the encryption key by the
// ID recorded in the blob. Unknown key IDs and malformed blobs fail hard;
// legacy unencrypted rows require an explicit offline migration, never a
// runtime guess.
func (tm *TOTPManager) DecryptSecret(blob []byte) (string, error) {
	if len(blob) < 2 {
		return "", fmt.Errorf("encrypted secret too short")
	}

	idLen := int(blob[0])
	if len(blob) < 1+idLen {
		return "", fmt.Errorf("encrypted secret truncated")
	}
	keyID := string(blob[1 : 1+idLen])

	gcm, err := tm.gcmFor(keyID)
	if err != nil {
		return "", err
	}

	rest := blob[1+idLen:]
	if len(rest) < gcm.NonceSize() {
		return "", fmt.Errorf("encrypted secret missing nonce")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, []byte(keyID))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}

	return string(plaintext), nil
}

func (tm *TOTPManager) gcmFor(keyID string) (cipher.AEAD, error) {
	key, ok := tm.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("unknown encryption key %q", keyID)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return gcm, nil
}

// ValidateCode checks a 6-digit code against a base32 secret at the current
// time, within the configured skew.
func (tm *TOTPManager) ValidateCode(secret, code string) (bool, error) {
	return tm.ValidateCodeAt(secret, code, time.Now())
}

// ValidateCodeAt is ValidateCode with an explicit reference time, for tests.
func (tm *TOTPManager) ValidateCodeAt(secret, code string, at time.Time) (bool, error) {
	valid, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, fmt.Errorf("failed to validate TOTP: %w", err)
	}
	return valid, nil
}
