// Package auditlog contains the audit record entity for intercepted
// exchanges and the ports the pipeline and admin API consume.
package auditlog

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("request log not found")

// Record is one intercepted exchange. Request and response bodies are stored
// as post-decrypt plaintext; the intercepted fields hold the transformed
// plaintext when a rule fired, so an operator can diff the two. Action fields
// are empty when that side was untouched.
type Record struct {
	ID                   int64     `json:"id"`
	Method               string    `json:"method"`
	RequestBody          string    `json:"request_body"`
	ResponseBody         string    `json:"response_body"`
	InterceptedRequest   string    `json:"intercepted_request,omitempty"`
	InterceptedResponse  string    `json:"intercepted_response,omitempty"`
	RequestAction        string    `json:"request_interception_action,omitempty"`
	ResponseAction       string    `json:"response_interception_action,omitempty"`
	Email                string    `json:"email,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
}

// Appender is the write port the proxy pipeline uses. Append failures must
// never gate the client exchange; the pipeline downgrades them to warnings.
type Appender interface {
	Append(ctx context.Context, rec *Record) (int64, error)
}

// Filter narrows List queries. Zero values mean "no constraint".
type Filter struct {
	Method string
	Search string // substring match over request and response bodies
	Limit  int
	Offset int
}

// Stats summarizes the audit trail for the admin dashboard.
type Stats struct {
	Total       int            `json:"total"`
	Intercepted int            `json:"intercepted"`
	ByMethod    map[string]int `json:"by_method"`
	ByAction    map[string]int `json:"by_action"`
}

// Store is the full query port consumed by the admin API.
type Store interface {
	Appender
	// List returns matching records newest-first along with the total count
	// ignoring Limit/Offset.
	List(ctx context.Context, f Filter) ([]Record, int, error)
	// Methods returns the distinct methods seen, sorted.
	Methods(ctx context.Context) ([]string, error)
	// Emails returns the distinct caller identities seen, sorted.
	Emails(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
}
