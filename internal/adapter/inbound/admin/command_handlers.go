package admin

import (
	"errors"
	"net/http"

	"github.com/lin-gate/lingate/internal/domain/command"
)

type reviewRequest struct {
	Status string `json:"status" validate:"required,oneof=verified rejected"`
	Notes  string `json:"notes"`
}

func (h *Handler) handleListCommands(w http.ResponseWriter, r *http.Request) {
	var (
		commands []command.Command
		err      error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		s := command.Status(status)
		if !s.Valid() {
			respondError(w, http.StatusBadRequest, "invalid status")
			return
		}
		commands, err = h.commands.ListByStatus(r.Context(), s)
	} else {
		commands, err = h.commands.ListAll(r.Context())
	}
	if err != nil {
		h.logger.Error("list commands failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if commands == nil {
		commands = []command.Command{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": commands})
}

// handleReviewCommand records the operator's verdict: verified or rejected.
func (h *Handler) handleReviewCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid command id")
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "status must be verified or rejected")
		return
	}

	err := h.commands.UpdateStatus(r.Context(), id, command.Status(req.Status), req.Notes)
	switch {
	case errors.Is(err, command.ErrNotFound):
		respondError(w, http.StatusNotFound, "command not found")
	case err != nil:
		h.logger.Error("review command failed", "command_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	default:
		respondJSON(w, http.StatusOK, map[string]string{"status": req.Status})
	}
}

// handleSendCommand dispatches a verified command to the device. Dispatch is
// simulated: the command is marked sent without a device round trip.
func (h *Handler) handleSendCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid command id")
		return
	}

	cmd, err := h.commands.FindByID(r.Context(), id)
	if errors.Is(err, command.ErrNotFound) {
		respondError(w, http.StatusNotFound, "command not found")
		return
	}
	if err != nil {
		h.logger.Error("find command failed", "command_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if cmd.Status != command.StatusVerified {
		respondError(w, http.StatusConflict, "only verified commands can be sent")
		return
	}

	err = h.commands.UpdateStatus(r.Context(), id, command.StatusSent, "dispatched (simulated)")
	if err != nil {
		h.logger.Error("send command failed", "command_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.logger.Info("command dispatched", "command_id", id)
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) handleClearVerified(w http.ResponseWriter, r *http.Request) {
	n, err := h.commands.ClearVerified(r.Context())
	if err != nil {
		h.logger.Error("clear verified commands failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"cleared": n})
}
