package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/innkeephq/innkeep/internal/models"
	pkgauth "github.com/innkeephq/innkeep/pkg/auth"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const principalContextKey contextKey = "principal"

// RequiredUserType constrains which identity variant a route admits.
type RequiredUserType int

const (
	AnyIdentity RequiredUserType = iota
	HotelManagersOnly
	AdministratorsOnly
)

// Requirement is the per-route declaration the middleware enforces. Handlers
// declare these in the route table; they contain no inline security checks
// of their own.
type Requirement struct {
	UserType   RequiredUserType
	RequireMFA bool
}

// SessionValidator resolves a raw bearer token to an active session.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*models.Session, error)
}

// IdentityResolver fetches the identity behind a session, needed for the
// IP whitelist check.
type IdentityResolver interface {
	GetByID(ctx context.Context, t models.IdentityType, id string) (*models.Identity, error)
}

// Auditor records security events. Implementations are best-effort; the
// middleware never fails a request because auditing failed.
type Auditor interface {
	Record(ctx context.Context, entry models.SecurityLogEntry)
}

// RequireAuth gates a route behind session authentication. Checks run in
// order and short-circuit: token presence, session validity, user type,
// MFA verification, IP whitelist. Every rejection is audited.
func RequireAuth(sessions SessionValidator, identities IdentityResolver, audit Auditor, ipCfg *pkghttp.IPConfig, req Requirement) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, ipCfg)
			userAgent := r.Header.Get("User-Agent")

			reject := func(identityID *string, identityType models.IdentityType, reason string, write func(http.ResponseWriter, string)) {
				audit.Record(r.Context(), models.SecurityLogEntry{
					IdentityID:   identityID,
					IdentityType: identityType,
					Action:       models.ActionAuthRejected,
					IPAddress:    ip,
					UserAgent:    userAgent,
					Details:      map[string]any{"reason": reason, "path": r.URL.Path},
				})
				write(w, "authentication required")
			}

			token, ok := ExtractToken(r)
			if !ok {
				reject(nil, "", "missing_token", pkghttp.WriteUnauthorized)
				return
			}

			session, err := sessions.Validate(r.Context(), token)
			if err != nil || session == nil {
				reject(nil, "", "invalid_or_expired_token", pkghttp.WriteUnauthorized)
				return
			}

			if !userTypeAllowed(req.UserType, session.IdentityType) {
				reject(&session.IdentityID, session.IdentityType, "wrong_user_type", pkghttp.WriteForbidden)
				return
			}

			if req.RequireMFA && !session.MFAVerified {
				audit.Record(r.Context(), models.SecurityLogEntry{
					IdentityID:   &session.IdentityID,
					IdentityType: session.IdentityType,
					Action:       models.ActionAuthRejected,
					IPAddress:    ip,
					UserAgent:    userAgent,
					Details:      map[string]any{"reason": "mfa_not_verified", "path": r.URL.Path, "token_fp": pkgauth.TokenFingerprint(token)},
				})
				pkghttp.WriteForbidden(w, "mfa verification required")
				return
			}

			identity, err := identities.GetByID(r.Context(), session.IdentityType, session.IdentityID)
			if err != nil {
				reject(&session.IdentityID, session.IdentityType, "identity_not_found", pkghttp.WriteUnauthorized)
				return
			}

			// Whitelist applies only when the identity has one configured
			if len(identity.IPWhitelist) > 0 && !slices.Contains(identity.IPWhitelist, ip) {
				reject(&session.IdentityID, session.IdentityType, "ip_not_whitelisted", pkghttp.WriteForbidden)
				return
			}

			principal := &models.Principal{
				ID:          session.IdentityID,
				Type:        session.IdentityType,
				MFAVerified: session.MFAVerified,
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func userTypeAllowed(required RequiredUserType, actual models.IdentityType) bool {
	switch required {
	case HotelManagersOnly:
		return actual == models.HotelManager
	case AdministratorsOnly:
		return actual == models.Administrator
	default:
		return true
	}
}

// ExtractToken pulls the bearer token from the Authorization header, falling
// back to the session cookie.
func ExtractToken(r *http.Request) (string, bool) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1], true
		}
		return "", false
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	return "", false
}

// WithPrincipal attaches an authenticated principal to the context.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// GetPrincipal extracts the authenticated principal from the request
// context. Returns nil outside of RequireAuth.
func GetPrincipal(r *http.Request) *models.Principal {
	principal, ok := r.Context().Value(principalContextKey).(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}
