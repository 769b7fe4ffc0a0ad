package admin

import (
	"net/http"
	"strconv"

	"github.com/lin-gate/lingate/internal/domain/auditlog"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}

	records, total, err := h.logs.List(r.Context(), auditlog.Filter{
		Method: r.URL.Query().Get("method"),
		Search: r.URL.Query().Get("search"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		h.logger.Error("list request logs failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []auditlog.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handler) handleLogMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.logs.Methods(r.Context())
	if err != nil {
		h.logger.Error("list log methods failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if methods == nil {
		methods = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": methods})
}

func (h *Handler) handleLogEmails(w http.ResponseWriter, r *http.Request) {
	emails, err := h.logs.Emails(r.Context())
	if err != nil {
		h.logger.Error("list log emails failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if emails == nil {
		emails = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"data": emails})
}

func (h *Handler) handleLogStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.logs.Stats(r.Context())
	if err != nil {
		h.logger.Error("log stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
