package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shoplane/auth-service/internal/application"
)

// Handler is the HTTP adapter entrypoint for auth use-cases.
// Keeping only application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers HTTP routes and the middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
		r.Post("/2fa/confirm", handler.twoFactorConfirm)
		r.Post("/refresh", handler.refresh)
		r.Post("/logout", handler.logout)
		r.Post("/password/forgot", handler.forgotPassword)
		r.Post("/password/reset", handler.resetPassword)
		r.Post("/email/verify", handler.verifyEmail)
		r.Post("/external", handler.externalLogin)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Post("/2fa/setup", handler.twoFactorSetup)
			r.Get("/login-history", handler.loginHistory)
		})
	})

	r.Route("/admin/v1/accounts", func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.Use(handler.adminOnlyMiddleware)
		r.Get("/", handler.adminListAccounts)
		r.Post("/{account_id}/ban", handler.adminBanAccount)
		r.Post("/{account_id}/unban", handler.adminUnbanAccount)
		r.Post("/{account_id}/role", handler.adminChangeRole)
		r.Post("/{account_id}/confirm-email", handler.adminConfirmEmail)
		r.Delete("/{account_id}", handler.adminDeleteAccount)
	})

	return r
}
