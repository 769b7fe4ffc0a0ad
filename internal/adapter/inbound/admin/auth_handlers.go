package admin

import (
	"errors"
	"net/http"

	"github.com/lin-gate/lingate/internal/domain/auth"
	"github.com/lin-gate/lingate/internal/domain/setting"
)

type loginRequest struct {
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "password is required")
		return
	}

	hash, err := h.settings.Get(r.Context(), setting.KeyAdminPasswordHash)
	if err != nil {
		if errors.Is(err, setting.ErrNotFound) {
			respondError(w, http.StatusUnauthorized, "admin credential not provisioned")
			return
		}
		h.logger.Error("load admin credential failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !auth.CheckPassword(req.Password, hash) {
		respondError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, err := h.issuer.Issue()
	if err != nil {
		h.logger.Error("token issue failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "old_password and new_password (min 6 chars) are required")
		return
	}

	hash, err := h.settings.Get(r.Context(), setting.KeyAdminPasswordHash)
	if err != nil {
		h.logger.Error("load admin credential failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !auth.CheckPassword(req.OldPassword, hash) {
		respondError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	newHash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		h.logger.Error("hash password failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.settings.Set(r.Context(), setting.KeyAdminPasswordHash, newHash, ""); err != nil {
		h.logger.Error("store admin credential failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
