// Package rule contains the interception rule entity and the resolution
// algorithm that decides which rule, if any, applies to a request.
package rule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Action is the interception behavior a rule directs.
type Action string

// The closed set of rule actions.
const (
	ActionPassthrough          Action = "passthrough"
	ActionModify               Action = "modify"
	ActionReplace              Action = "replace"
	ActionRandomizeAppDuration Action = "randomize_app_duration"
)

// Valid reports whether a is a member of the closed action set.
func (a Action) Valid() bool {
	switch a {
	case ActionPassthrough, ActionModify, ActionReplace, ActionRandomizeAppDuration:
		return true
	}
	return false
}

// Store errors.
var (
	ErrNotFound      = errors.New("rule not found")
	ErrInvalidAction = errors.New("invalid action")
	// ErrCustomResponseRequired is returned when a replace or modify rule is
	// written without a well-formed custom_response.
	ErrCustomResponseRequired = errors.New("custom_response must be valid JSON for replace and modify actions")
)

// Rule is a persistent directive to transform requests or responses for a
// (method, email-scope) pair.
type Rule struct {
	ID             int64     `json:"id"`
	MethodName     string    `json:"method_name"`
	Email          string    `json:"email,omitempty"` // comma-separated allowlist; empty means no user scope
	Action         Action    `json:"action"`
	CustomResponse string    `json:"custom_response,omitempty"`
	Remark         string    `json:"remark,omitempty"`
	Enabled        bool      `json:"is_enabled"`
	Global         bool      `json:"is_global"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MatchesEmail reports whether email appears (exact, case-sensitive) in the
// rule's comma-separated allowlist. Tokens are trimmed of whitespace.
func (r *Rule) MatchesEmail(email string) bool {
	if email == "" || r.Email == "" {
		return false
	}
	for _, token := range strings.Split(r.Email, ",") {
		if strings.TrimSpace(token) == email {
			return true
		}
	}
	return false
}

// Validate enforces the write invariants: the action belongs to the closed
// set, replace/modify carry well-formed JSON in custom_response, and a global
// rule carries no email scope.
func (r *Rule) Validate() error {
	if !r.Action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidAction, r.Action)
	}
	if r.Action == ActionReplace || r.Action == ActionModify {
		if r.CustomResponse == "" || !json.Valid([]byte(r.CustomResponse)) {
			return ErrCustomResponseRequired
		}
	}
	if r.Global && r.Email != "" {
		return errors.New("global rules must not carry an email scope")
	}
	return nil
}

// Resolve picks the applicable rule for a caller. The input slice must hold
// only enabled rules for one method, sorted newest-first; both store adapters
// query it that way.
//
// A user-scoped rule (non-global, non-empty email allowlist containing the
// caller) wins over any global rule; ties within a scope break on recency.
// Partially specified rows — global-with-email or user-scoped-without-email —
// never match.
func Resolve(rules []Rule, email string) *Rule {
	for i := range rules {
		r := &rules[i]
		if !r.Global && r.Email != "" && r.MatchesEmail(email) {
			return r
		}
	}
	for i := range rules {
		r := &rules[i]
		if r.Global && r.Email == "" {
			return r
		}
	}
	return nil
}

// Patch carries partial updates for Store.Update. Nil fields are left
// untouched. Setting Global to true clears the email scope.
type Patch struct {
	MethodName     *string
	Email          *string
	Action         *Action
	CustomResponse *string
	Remark         *string
	Enabled        *bool
	Global         *bool
}

// Store is the persistence port for interception rules.
type Store interface {
	// ListAll returns every rule, newest-first.
	ListAll(ctx context.Context) ([]Rule, error)
	// FindByID returns ErrNotFound when no rule has the id.
	FindByID(ctx context.Context, id int64) (*Rule, error)
	// Resolve returns the applicable rule for (method, email), or nil when
	// no enabled rule matches. This is the pipeline's hot-path query.
	Resolve(ctx context.Context, method, email string) (*Rule, error)
	// Upsert writes a rule keyed by (method_name, effective email scope):
	// when a rule for the same pair exists it is overwritten in place and
	// re-enabled; otherwise a new row is inserted. Returns the rule id.
	Upsert(ctx context.Context, r Rule) (int64, error)
	// Update patches named fields of an existing rule.
	Update(ctx context.Context, id int64, p Patch) error
	// Delete removes a rule. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id int64) error
}
