// Package admin implements the operator-facing JSON API: login and password
// management, interception rule CRUD, audit log queries, and the command
// review queue. Everything except login sits behind the bearer token gate.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/lin-gate/lingate/internal/domain/auditlog"
	"github.com/lin-gate/lingate/internal/domain/auth"
	"github.com/lin-gate/lingate/internal/domain/command"
	"github.com/lin-gate/lingate/internal/domain/rule"
	"github.com/lin-gate/lingate/internal/domain/setting"
)

// Handler serves the admin API.
type Handler struct {
	settings setting.Store
	rules    rule.Store
	logs     auditlog.Store
	commands command.Store
	issuer   *auth.TokenIssuer
	validate *validator.Validate
	logger   *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// NewHandler creates the admin API handler.
func NewHandler(settings setting.Store, rules rule.Store, logs auditlog.Store, commands command.Store, issuer *auth.TokenIssuer, opts ...Option) *Handler {
	h := &Handler{
		settings: settings,
		rules:    rules,
		logs:     logs,
		commands: commands,
		issuer:   issuer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the admin mux with the auth gate applied to everything
// except POST /admin/api/login.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /admin/api/login", h.handleLogin)
	mux.HandleFunc("PUT /admin/api/password", h.handleChangePassword)

	mux.HandleFunc("GET /admin/api/rules", h.handleListRules)
	mux.HandleFunc("POST /admin/api/rules", h.handleUpsertRule)
	mux.HandleFunc("PUT /admin/api/rules/{id}", h.handleUpdateRule)
	mux.HandleFunc("DELETE /admin/api/rules/{id}", h.handleDeleteRule)

	mux.HandleFunc("GET /admin/api/logs", h.handleListLogs)
	mux.HandleFunc("GET /admin/api/logs/methods", h.handleLogMethods)
	mux.HandleFunc("GET /admin/api/logs/emails", h.handleLogEmails)
	mux.HandleFunc("GET /admin/api/logs/stats", h.handleLogStats)

	mux.HandleFunc("GET /admin/api/commands", h.handleListCommands)
	mux.HandleFunc("POST /admin/api/commands/{id}", h.handleReviewCommand)
	mux.HandleFunc("POST /admin/api/commands/{id}/send", h.handleSendCommand)
	mux.HandleFunc("DELETE /admin/api/commands/verified", h.handleClearVerified)

	return h.AuthMiddleware(mux)
}

// respondJSON writes v as a JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes a JSON error body.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON decodes the request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
