// Package setting contains the singleton key/value configuration rows the
// proxy and admin surface share (admin credential, upstream target).
package setting

import (
	"context"
	"errors"
)

// Well-known setting keys.
const (
	KeyAdminPasswordHash = "admin_password_hash"
	KeyTargetURL         = "target_url"
)

// ErrNotFound is returned when a key has no row.
var ErrNotFound = errors.New("setting not found")

// Store is the persistence port for settings.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	// Set creates or overwrites a key. The description is kept only when
	// non-empty, so updates don't erase the seeded documentation.
	Set(ctx context.Context, key, value, description string) error
}
