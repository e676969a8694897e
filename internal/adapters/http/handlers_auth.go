package http

import (
	"net/http"
	"strings"

	"github.com/shoplane/auth-service/internal/application"
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req application.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = readIP(r)
	}

	res, err := h.service.Register(r.Context(), req, strings.TrimSpace(r.Header.Get("Idempotency-Key")))
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req application.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "login", err)
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = readIP(r)
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	res, err := h.service.Login(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) twoFactorConfirm(w http.ResponseWriter, r *http.Request) {
	var req application.TwoFactorConfirmRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "two_factor_confirm", err)
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = readIP(r)
	}
	if req.UserAgent == "" {
		req.UserAgent = r.UserAgent()
	}

	res, err := h.service.ConfirmTwoFactor(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "two_factor_confirm", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "refresh", err)
		return
	}

	res, err := h.service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeMappedError(r.Context(), w, "refresh", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

// logout does not sit behind authMiddleware: the access token may already be
// expired and the call must still revoke the refresh token.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	var req application.LogoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "logout", err)
		return
	}
	if req.AccessToken == "" {
		if token, err := bearerTokenFromHeader(r.Header.Get("Authorization")); err == nil {
			req.AccessToken = token
		}
	}

	if err := h.service.Logout(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "logout", err)
		return
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req application.ForgotPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "forgot_password", err)
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = readIP(r)
	}

	if err := h.service.ForgotPassword(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "forgot_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "If the account exists, a reset email has been sent")
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req application.ResetPasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "reset_password", err)
		return
	}
	if req.IPAddress == "" {
		req.IPAddress = readIP(r)
	}

	if err := h.service.ResetPassword(r.Context(), req); err != nil {
		writeMappedError(r.Context(), w, "reset_password", err)
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully")
}

func (h *Handler) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "verify_email", err)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Token); err != nil {
		writeMappedError(r.Context(), w, "verify_email", err)
		return
	}
	writeMessage(w, http.StatusOK, "Email confirmed successfully")
}

func (h *Handler) externalLogin(w http.ResponseWriter, r *http.Request) {
	var req application.ExternalLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "external_login", err)
		return
	}

	res, err := h.service.HandleExternalLogin(r.Context(), req)
	if err != nil {
		writeMappedError(r.Context(), w, "external_login", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) twoFactorSetup(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingAuthError(r.Context(), w, "two_factor_setup")
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "two_factor_setup", err)
		return
	}

	if err := h.service.SetTwoFactor(r.Context(), claims.AccountID, req.Enabled); err != nil {
		writeMappedError(r.Context(), w, "two_factor_setup", err)
		return
	}
	if req.Enabled {
		writeMessage(w, http.StatusOK, "Two-factor authentication enabled")
		return
	}
	writeMessage(w, http.StatusOK, "Two-factor authentication disabled")
}

func (h *Handler) loginHistory(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingAuthError(r.Context(), w, "login_history")
		return
	}

	query := application.LoginHistoryQuery{
		Page:   parseIntDefault(r.URL.Query().Get("page"), 1),
		Limit:  parseIntDefault(r.URL.Query().Get("limit"), 20),
		Days:   parseIntDefault(r.URL.Query().Get("days"), 0),
		Status: r.URL.Query().Get("status"),
	}

	res, err := h.service.ListLoginHistory(r.Context(), claims.AccountID, query)
	if err != nil {
		writeMappedError(r.Context(), w, "login_history", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
