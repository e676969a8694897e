package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func accountIDFromURL(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "account_id"))
	return id, err == nil
}

func (h *Handler) adminListAccounts(w http.ResponseWriter, r *http.Request) {
	page := parseIntDefault(r.URL.Query().Get("page"), 1)
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)

	res, err := h.service.ListAccounts(r.Context(), page, limit)
	if err != nil {
		writeMappedError(r.Context(), w, "admin_list_accounts", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) adminBanAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromURL(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid account id")
		return
	}
	if err := h.service.SetAccountBanned(r.Context(), accountID, true); err != nil {
		writeMappedError(r.Context(), w, "admin_ban_account", err)
		return
	}
	writeMessage(w, http.StatusOK, "Account banned")
}

func (h *Handler) adminUnbanAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromURL(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid account id")
		return
	}
	if err := h.service.SetAccountBanned(r.Context(), accountID, false); err != nil {
		writeMappedError(r.Context(), w, "admin_unban_account", err)
		return
	}
	writeMessage(w, http.StatusOK, "Account unbanned")
}

func (h *Handler) adminChangeRole(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromURL(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid account id")
		return
	}
	var req struct {
		Role string `json:"role"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "admin_change_role", err)
		return
	}

	if err := h.service.ChangeAccountRole(r.Context(), accountID, req.Role); err != nil {
		writeMappedError(r.Context(), w, "admin_change_role", err)
		return
	}
	writeMessage(w, http.StatusOK, "Role updated")
}

func (h *Handler) adminConfirmEmail(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromURL(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid account id")
		return
	}
	if err := h.service.ConfirmAccountEmail(r.Context(), accountID); err != nil {
		writeMappedError(r.Context(), w, "admin_confirm_email", err)
		return
	}
	writeMessage(w, http.StatusOK, "Email confirmed")
}

func (h *Handler) adminDeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromURL(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid account id")
		return
	}
	if err := h.service.DeleteAccount(r.Context(), accountID); err != nil {
		writeMappedError(r.Context(), w, "admin_delete_account", err)
		return
	}
	writeMessage(w, http.StatusOK, "Account deleted")
}
