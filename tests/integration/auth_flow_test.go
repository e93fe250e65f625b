package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innkeephq/innkeep/internal/models"
)

var testDB *TestDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	db, err := SetupTestDatabase(ctx)
	if err != nil {
		// No Docker available; skip the whole package rather than fail
		os.Exit(0)
	}
	testDB = db

	code := m.Run()

	testDB.Teardown(ctx)
	os.Exit(code)
}

func freshServer(t *testing.T) *TestServer {
	t.Helper()

	require.NoError(t, testDB.CleanupTables(context.Background()))
	ts := NewTestServer(testDB)
	t.Cleanup(ts.Close)
	return ts
}

// currentCode derives a valid TOTP code from the encrypted secret at rest,
// the same way an authenticator app would from the provisioned key.
func currentCode(t *testing.T, ts *TestServer, identityType models.IdentityType, identityID string) string {
	t.Helper()

	table := "hotel_managers"
	if identityType == models.Administrator {
		table = "administrators"
	}

	var blob []byte
	err := testDB.Pool.QueryRow(context.Background(),
		"SELECT mfa_secret FROM "+table+" WHERE id = $1", identityID,
	).Scan(&blob)
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	secret, err := ts.TOTP.DecryptSecret(blob)
	require.NoError(t, err)

	code, err := totp.GenerateCodeCustom(secret, time.Now(), totp.ValidateOpts{
		Period:    30,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}

func TestHotelManagerLoginFlow(t *testing.T) {
	ts := freshServer(t)
	ctx := context.Background()

	email, password := TestCredentials("manager")
	identity, err := SeedIdentity(ctx, testDB.Pool, models.HotelManager, email, &password)
	require.NoError(t, err)

	result, status, err := ts.Login("hotel", email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, result.SessionToken)
	assert.False(t, result.RequiresMFA)

	resp, err := ts.RequestWithAuth(http.MethodGet, "/me", result.SessionToken, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me struct {
		Email string `json:"email"`
		Type  string `json:"type"`
	}
	require.NoError(t, ParseJSONResponse(resp, &me))
	assert.Equal(t, email, me.Email)
	assert.Equal(t, "hotel_manager", me.Type)

	count, err := CountSecurityLogEntries(ctx, testDB.Pool, identity.ID, string(models.ActionLoginSuccess))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestLoginWrongPassword(t *testing.T) {
	ts := freshServer(t)
	ctx := context.Background()

	email, password := TestCredentials("wrongpw")
	_, err := SeedIdentity(ctx, testDB.Pool, models.HotelManager, email, &password)
	require.NoError(t, err)

	_, status, err := ts.Login("hotel", email, "Not-The-Password1!")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Unknown email gets the same answer
	_, status, err = ts.Login("hotel", "nobody@example.com", "Whatever1!")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestAccountLockout(t *testing.T) {
	ts := freshServer(t)
	ctx := context.Background()

	email, password := TestCredentials("lockout")
	_, err := SeedIdentity(ctx, testDB.Pool, models.HotelManager, email, &password)
	require.NoError(t, err)

	for i := 0; i < ts.Config.Auth.LockoutThreshold; i++ {
		_, status, err := ts.Login("hotel", email, "Wrong-Password1!")
		require.NoError(t, err)
		require.Equal(t, http.StatusUnauthorized, status)
	}

	// Locked now, even with the correct password
	_, status, err := ts.Login("hotel", email, password)
	require.NoError(t, err)
	assert.Equal(t, http.StatusLocked, status)

	assert.Contains(t, ts.Email.LockoutEmails, email)
}

func TestSingleActiveSession(t *testing.T) {
	ts := freshServer(t)
	ctx := context.Background()

	email, password := TestCredentials("single")
	identity, err := SeedIdentity(ctx, testDB.Pool, models.HotelManager, email, &password)
	require.NoError(t, err)

	first, status, err := ts.Login("hotel", email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	second, status, err := ts.Login("hotel", email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	count, err := ActiveSessionCount(ctx, testDB.Pool, identity.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	resp, err := ts.RequestWithAuth(http.MethodGet, "/me", first.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/me", second.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdministratorMFAEnrollment(t *testing.T) {
	ts := freshServer(t)
	ctx := context.Background()

	email, password := TestCredentials("admin")
	identity, err := SeedIdentity(ctx, testDB.Pool, models.Administrator, email, &password)
	require.NoError(t, err)

	result, status, err := ts.Login("admin", email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, result.RequiresMFA)
	assert.True(t, result.RequiresMFASetup)

	// Pending session cannot reach protected routes yet
	resp, err := ts.RequestWithAuth(http.MethodGet, "/me", result.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Provision a secret
	resp, err = ts.RequestWithAuth(http.MethodPost, "/setup-mfa", result.SessionToken, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var setup struct {
		OTPAuthURL string `json:"otpauth_url"`
		QRCode     string `json:"qr_code"`
	}
	require.NoError(t, ParseJSONResponse(resp, &setup))
	assert.Contains(t, setup.OTPAuthURL, "otpauth://totp/")
	assert.Contains(t, setup.QRCode, "data:image/png;base64,")

	// Confirm enrollment with a live code; this verifies the pending
	// session in the same step
	code := currentCode(t, ts, models.Administrator, identity.ID)
	resp, err = ts.RequestWithAuth(http.MethodPost, "/enable-mfa", result.SessionToken, map[string]string{"code": code})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/me", result.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// The next login starts pending again and needs verify-mfa
	relogin, status, err := ts.Login("admin", email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, relogin.RequiresMFA)
	assert.False(t, relogin.RequiresMFASetup)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/me", relogin.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	code = currentCode(t, ts, models.Administrator, identity.ID)
	resp, err = ts.RequestWithAuth(http.MethodPost, "/verify-mfa", relogin.SessionToken, map[string]string{"code": code})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.RequestWithAuth(http.MethodGet, "/me", relogin.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestVerifyMFAWrongCode(t *testing.T) {
	ts := freshServer(t)
	ctx := context.Background()

	email, password := TestCredentials("badcode")
	identity, err := SeedIdentity(ctx, testDB.Pool, models.Administrator, email, &password)
	require.NoError(t, err)

	result, status, err := ts.Login("admin", email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	resp, err := ts.RequestWithAuth(http.MethodPost, "/setup-mfa", result.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	code := currentCode(t, ts, models.Administrator, identity.ID)
	resp, err = ts.RequestWithAuth(http.MethodPost, "/enable-mfa", result.SessionToken, map[string]string{"code": code})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Fresh login, pending until a valid code verifies it
	relogin, status, err := ts.Login("admin", email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	resp, err = ts.RequestWithAuth(http.MethodPost, "/verify-mfa", relogin.SessionToken, map[string]string{"code": "000000"})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Session stays pending
	resp, err = ts.RequestWithAuth(http.MethodGet, "/me", relogin.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPasswordResetFlow(t *testing.T) {
	ts := freshServer(t)
	ctx := context.Background()

	email, password := TestCredentials("reset")
	_, err := SeedIdentity(ctx, testDB.Pool, models.HotelManager, email, &password)
	require.NoError(t, err)

	// Establish a session that the reset should kill
	session, status, err := ts.Login("hotel", email, password)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)

	resp, err := ts.Request(http.MethodPost, "/forgot-password", map[string]string{"email": email}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	token := ts.Email.LastResetToken()
	require.NotEmpty(t, token)

	newPassword := "EntirelyNew1!"
	resp, err = ts.Request(http.MethodPost, "/reset-password", map[string]string{
		"token":        token,
		"new_password": newPassword,
	}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Old session is gone
	resp, err = ts.RequestWithAuth(http.MethodGet, "/me", session.SessionToken, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Old password no longer works, new one does
	_, status, err = ts.Login("hotel", email, password)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, status)

	_, status, err = ts.Login("hotel", email, newPassword)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	// The token is bound to the old password hash; reuse fails
	resp, err = ts.Request(http.MethodPost, "/reset-password", map[string]string{
		"token":        token,
		"new_password": "AnotherOne2!",
	}, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	ts := freshServer(t)

	resp, err := ts.Request(http.MethodPost, "/forgot-password", map[string]string{
		"email": "unknown@example.com",
	}, nil)
	require.NoError(t, err)
	resp.Body.Close()

	// Same answer as for a registered address, and no email goes out
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, ts.Email.ResetEmails)
}
