package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/innkeephq/innkeep/internal/auth"
	"github.com/innkeephq/innkeep/internal/handlers"
	"github.com/innkeephq/innkeep/internal/middleware"
	pkghttp "github.com/innkeephq/innkeep/pkg/http"
)

// Deps bundles everything the route table wires together.
type Deps struct {
	AuthHandler  *handlers.AuthHandler
	MFAHandler   *handlers.MFAHandler
	GuestHandler *handlers.GuestHandler
	AuditHandler *handlers.AuditHandler
	Sessions     auth.SessionValidator
	Identities   auth.IdentityResolver
	Audit        auth.Auditor
	IPConfig     *pkghttp.IPConfig
	HealthCheck  http.HandlerFunc
}

// RegisterRoutes declares the full route table. Access control is entirely
// declarative: each group names its auth.Requirement and handlers contain no
// inline security checks.
func RegisterRoutes(router chi.Router, deps Deps) {
	authRate := middleware.RateLimitByIP(middleware.DefaultAuthRateLimit())
	apiRate := middleware.RateLimitByIP(middleware.DefaultAPIRateLimit())

	requireAuth := func(req auth.Requirement) func(http.Handler) http.Handler {
		return auth.RequireAuth(deps.Sessions, deps.Identities, deps.Audit, deps.IPConfig, req)
	}

	router.Get("/health", deps.HealthCheck)

	// Public routes, throttled harder than the rest of the API
	router.Group(func(r chi.Router) {
		r.Use(authRate)
		r.Post("/login/{variant}", deps.AuthHandler.Login)
		r.Post("/setup-password", deps.AuthHandler.SetupPassword)
		r.Post("/forgot-password", deps.AuthHandler.ForgotPassword)
		r.Post("/reset-password", deps.AuthHandler.ResetPassword)
	})

	// Pending-session routes: authenticated but reachable before the MFA
	// step completes, otherwise nobody could ever verify
	router.Group(func(r chi.Router) {
		r.Use(apiRate)
		r.Use(requireAuth(auth.Requirement{UserType: auth.AnyIdentity, RequireMFA: false}))
		r.Post("/setup-mfa", deps.MFAHandler.Setup)
		r.Post("/enable-mfa", deps.MFAHandler.Enable)
		r.Post("/verify-mfa", deps.MFAHandler.Verify)
		r.Post("/logout", deps.AuthHandler.Logout)
	})

	// Fully authenticated routes, any identity variant
	router.Group(func(r chi.Router) {
		r.Use(apiRate)
		r.Use(requireAuth(auth.Requirement{UserType: auth.AnyIdentity, RequireMFA: true}))
		r.Get("/me", deps.AuthHandler.Me)
		r.Get("/mfa-status", deps.MFAHandler.Status)
		r.Post("/disable-mfa", deps.MFAHandler.Disable)
	})

	// Hotel-manager-only routes
	router.Group(func(r chi.Router) {
		r.Use(apiRate)
		r.Use(requireAuth(auth.Requirement{UserType: auth.HotelManagersOnly, RequireMFA: true}))
		r.Post("/guests", deps.GuestHandler.Create)
		r.Get("/guests", deps.GuestHandler.List)
		r.Get("/guests/{id}", deps.GuestHandler.Get)
		r.Put("/guests/{id}", deps.GuestHandler.Update)
		r.Delete("/guests/{id}", deps.GuestHandler.Delete)
	})

	// Administrator-only routes
	router.Group(func(r chi.Router) {
		r.Use(apiRate)
		r.Use(requireAuth(auth.Requirement{UserType: auth.AdministratorsOnly, RequireMFA: true}))
		r.Post("/reset-mfa", deps.MFAHandler.Reset)
		r.Post("/hotel-managers", deps.AuthHandler.ProvisionManager)
		r.Get("/hotel-managers/{id}/security-log", deps.AuditHandler.ListForManager)
	})
}
