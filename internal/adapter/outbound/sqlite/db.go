// Package sqlite implements the persistence ports on a single SQLite file
// using database/sql with the modernc.org/sqlite driver (no cgo).
//
// The schema is bootstrapped on startup and the admin credential and upstream
// target are seeded on first run. Timestamps are stored as local time in the
// fleet's operating timezone (Asia/Shanghai) to match the historical data.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lin-gate/lingate/internal/domain/auth"
	"github.com/lin-gate/lingate/internal/domain/setting"
)

// timeLayout is the timestamp format shared by all tables.
const timeLayout = "2006-01-02 15:04:05"

// DefaultAdminPassword seeds the admin credential on first run. Operators are
// expected to change it through PUT /admin/api/password.
const DefaultAdminPassword = "admin123"

// DefaultTargetURL seeds the upstream target on first run.
const DefaultTargetURL = "https://cloud.linspirer.com:883"

// loc is the fleet timezone used for all stored timestamps.
var loc = mustLoadLocation()

func mustLoadLocation() *time.Location {
	l, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		return time.FixedZone("CST", 8*3600)
	}
	return l
}

// now returns the current time in the fleet timezone, truncated to seconds.
func now() time.Time {
	return time.Now().In(loc).Truncate(time.Second)
}

func formatTime(t time.Time) string {
	return t.In(loc).Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullable maps an empty string to NULL on write.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const schema = `
CREATE TABLE IF NOT EXISTS config (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    description TEXT,
    updated_at  TEXT
);

CREATE TABLE IF NOT EXISTS interception_rules (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    method_name     TEXT NOT NULL,
    email           TEXT,
    action          TEXT NOT NULL
        CHECK (action IN ('passthrough','modify','replace','randomize_app_duration')),
    custom_response TEXT,
    remark          TEXT,
    is_enabled      INTEGER NOT NULL DEFAULT 1,
    is_global       INTEGER NOT NULL DEFAULT 0,
    created_at      TEXT NOT NULL,
    updated_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_interception_rules_method_email
    ON interception_rules (method_name, email);

CREATE TABLE IF NOT EXISTS request_logs (
    id                           INTEGER PRIMARY KEY AUTOINCREMENT,
    method                       TEXT,
    request_body                 TEXT,
    response_body                TEXT,
    intercepted_request          TEXT,
    intercepted_response         TEXT,
    request_interception_action  TEXT,
    response_interception_action TEXT,
    email                        TEXT,
    created_at                   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS commands (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    command_json TEXT NOT NULL,
    status       TEXT NOT NULL DEFAULT 'unverified'
        CHECK (status IN ('unverified','verified','rejected','sent','failed')),
    received_at  TEXT NOT NULL,
    processed_at TEXT,
    notes        TEXT
);

CREATE TABLE IF NOT EXISTS tactics_templates (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL,
    description   TEXT,
    template_json TEXT NOT NULL,
    created_at    TEXT NOT NULL
);
`

// Open opens (creating if needed) the database file and applies connection
// settings. The single-connection pool serializes writers, which is how
// SQLite wants to be used.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// Bootstrap creates the schema and seeds the admin credential and upstream
// target when absent. Safe to run on every startup.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM config WHERE key = ?`, setting.KeyAdminPasswordHash).Scan(&n)
	if err != nil {
		return fmt.Errorf("check admin credential: %w", err)
	}
	if n == 0 {
		hash, err := auth.HashPassword(DefaultAdminPassword)
		if err != nil {
			return fmt.Errorf("seed admin credential: %w", err)
		}
		_, err = db.ExecContext(ctx,
			`INSERT INTO config (key, value, description, updated_at) VALUES (?, ?, ?, ?)`,
			setting.KeyAdminPasswordHash, hash, "bcrypt hash of the admin password", formatTime(now()))
		if err != nil {
			return fmt.Errorf("seed admin credential: %w", err)
		}
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO config (key, value, description, updated_at) VALUES (?, ?, ?, ?)`,
		setting.KeyTargetURL, DefaultTargetURL, "upstream control server base URL", formatTime(now()))
	if err != nil {
		return fmt.Errorf("seed target url: %w", err)
	}
	return nil
}
