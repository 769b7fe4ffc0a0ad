package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lin-gate/lingate/internal/domain/command"
)

// CommandStore implements command.Store on the commands table.
type CommandStore struct {
	db *sql.DB
}

// NewCommandStore creates a command store over an opened database.
func NewCommandStore(db *sql.DB) *CommandStore {
	return &CommandStore{db: db}
}

const commandColumns = `id, command_json, status, received_at, processed_at, COALESCE(notes,'')`

func scanCommand(row interface{ Scan(...any) error }) (*command.Command, error) {
	var c command.Command
	var received string
	var processed sql.NullString
	err := row.Scan(&c.ID, &c.CommandJSON, &c.Status, &received, &processed, &c.Notes)
	if err != nil {
		return nil, err
	}
	c.ReceivedAt = parseTime(received)
	if processed.Valid {
		t := parseTime(processed.String)
		c.ProcessedAt = &t
	}
	return &c, nil
}

func (s *CommandStore) query(ctx context.Context, where string, args ...any) ([]command.Command, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+commandColumns+` FROM commands`+where+` ORDER BY id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var out []command.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListAll returns every queued command, newest-first.
func (s *CommandStore) ListAll(ctx context.Context) ([]command.Command, error) {
	return s.query(ctx, "")
}

// ListByStatus returns commands in the given status, newest-first.
func (s *CommandStore) ListByStatus(ctx context.Context, st command.Status) ([]command.Command, error) {
	return s.query(ctx, ` WHERE status = ?`, string(st))
}

// FindByID returns command.ErrNotFound when absent.
func (s *CommandStore) FindByID(ctx context.Context, id int64) (*command.Command, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+commandColumns+` FROM commands WHERE id = ?`, id)
	c, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, command.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find command: %w", err)
	}
	return c, nil
}

// Insert enqueues a payload as unverified and returns its id.
func (s *CommandStore) Insert(ctx context.Context, commandJSON string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO commands (command_json, status, received_at) VALUES (?, ?, ?)`,
		commandJSON, string(command.StatusUnverified), formatTime(now()))
	if err != nil {
		return 0, fmt.Errorf("insert command: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert command id: %w", err)
	}
	return id, nil
}

// UpdateStatus advances the workflow and stamps processed_at. Empty notes
// leave the existing notes untouched.
func (s *CommandStore) UpdateStatus(ctx context.Context, id int64, st command.Status, notes string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE commands
		SET status = ?, processed_at = ?,
		    notes = COALESCE(NULLIF(?, ''), notes)
		WHERE id = ?`,
		string(st), formatTime(now()), notes, id)
	if err != nil {
		return fmt.Errorf("update command status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update command status: %w", err)
	}
	if n == 0 {
		return command.ErrNotFound
	}
	return nil
}

// ClearVerified deletes all verified commands and returns the count.
func (s *CommandStore) ClearVerified(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM commands WHERE status = ?`, string(command.StatusVerified))
	if err != nil {
		return 0, fmt.Errorf("clear verified commands: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear verified commands: %w", err)
	}
	return int(n), nil
}

var _ command.Store = (*CommandStore)(nil)
