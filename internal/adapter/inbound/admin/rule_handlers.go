package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/lin-gate/lingate/internal/domain/rule"
)

type ruleRequest struct {
	MethodName     string `json:"method_name" validate:"required"`
	Email          string `json:"email"`
	Action         string `json:"action" validate:"required,oneof=passthrough modify replace randomize_app_duration"`
	CustomResponse string `json:"custom_response"`
	Remark         string `json:"remark"`
	Enabled        bool   `json:"is_enabled"`
	Global         bool   `json:"is_global"`
}

type rulePatchRequest struct {
	MethodName     *string `json:"method_name"`
	Email          *string `json:"email"`
	Action         *string `json:"action" validate:"omitempty,oneof=passthrough modify replace randomize_app_duration"`
	CustomResponse *string `json:"custom_response"`
	Remark         *string `json:"remark"`
	Enabled        *bool   `json:"is_enabled"`
	Global         *bool   `json:"is_global"`
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func (h *Handler) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.ListAll(r.Context())
	if err != nil {
		h.logger.Error("list rules failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if rules == nil {
		rules = []rule.Rule{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": rules})
}

func (h *Handler) handleUpsertRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "method_name and a valid action are required")
		return
	}

	id, err := h.rules.Upsert(r.Context(), rule.Rule{
		MethodName:     req.MethodName,
		Email:          req.Email,
		Action:         rule.Action(req.Action),
		CustomResponse: req.CustomResponse,
		Remark:         req.Remark,
		Enabled:        req.Enabled,
		Global:         req.Global,
	})
	if err != nil {
		if errors.Is(err, rule.ErrInvalidAction) || errors.Is(err, rule.ErrCustomResponseRequired) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("upsert rule failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (h *Handler) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var req rulePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid action")
		return
	}

	patch := rule.Patch{
		MethodName:     req.MethodName,
		Email:          req.Email,
		CustomResponse: req.CustomResponse,
		Remark:         req.Remark,
		Enabled:        req.Enabled,
		Global:         req.Global,
	}
	if req.Action != nil {
		a := rule.Action(*req.Action)
		patch.Action = &a
	}

	err := h.rules.Update(r.Context(), id, patch)
	switch {
	case errors.Is(err, rule.ErrNotFound):
		respondError(w, http.StatusNotFound, "rule not found")
	case errors.Is(err, rule.ErrInvalidAction), errors.Is(err, rule.ErrCustomResponseRequired):
		respondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.Error("update rule failed", "rule_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func (h *Handler) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	err := h.rules.Delete(r.Context(), id)
	switch {
	case errors.Is(err, rule.ErrNotFound):
		respondError(w, http.StatusNotFound, "rule not found")
	case err != nil:
		h.logger.Error("delete rule failed", "rule_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
