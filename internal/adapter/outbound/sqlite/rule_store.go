package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lin-gate/lingate/internal/domain/rule"
)

// RuleStore implements rule.Store on the interception_rules table.
type RuleStore struct {
	db *sql.DB
}

// NewRuleStore creates a rule store over an opened database.
func NewRuleStore(db *sql.DB) *RuleStore {
	return &RuleStore{db: db}
}

const ruleColumns = `id, method_name, COALESCE(email,''), action, COALESCE(custom_response,''),
	COALESCE(remark,''), is_enabled, is_global, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*rule.Rule, error) {
	var r rule.Rule
	var created, updated string
	err := row.Scan(&r.ID, &r.MethodName, &r.Email, &r.Action, &r.CustomResponse,
		&r.Remark, &r.Enabled, &r.Global, &created, &updated)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = parseTime(created)
	r.UpdatedAt = parseTime(updated)
	return &r, nil
}

func (s *RuleStore) queryRules(ctx context.Context, where string, args ...any) ([]rule.Rule, error) {
	q := `SELECT ` + ruleColumns + ` FROM interception_rules ` + where +
		` ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []rule.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ListAll returns every rule, newest-first.
func (s *RuleStore) ListAll(ctx context.Context) ([]rule.Rule, error) {
	return s.queryRules(ctx, "")
}

// FindByID returns rule.ErrNotFound when no rule has the id.
func (s *RuleStore) FindByID(ctx context.Context, id int64) (*rule.Rule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM interception_rules WHERE id = ?`, id)
	r, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, rule.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find rule: %w", err)
	}
	return r, nil
}

// Resolve loads the enabled rules for the method newest-first and applies the
// domain resolution algorithm.
func (s *RuleStore) Resolve(ctx context.Context, method, email string) (*rule.Rule, error) {
	candidates, err := s.queryRules(ctx, `WHERE method_name = ? AND is_enabled = 1`, method)
	if err != nil {
		return nil, err
	}
	return rule.Resolve(candidates, email), nil
}

// Upsert writes a rule keyed by (method_name, effective email scope). An
// existing row for the pair is overwritten in place and re-enabled.
func (s *RuleStore) Upsert(ctx context.Context, r rule.Rule) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	email := r.Email
	if r.Global {
		email = ""
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM interception_rules
		 WHERE method_name = ? AND COALESCE(email,'') = ? AND is_global = ?`,
		r.MethodName, email, r.Global).Scan(&id)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx,
			`UPDATE interception_rules
			 SET action = ?, custom_response = ?, remark = ?, is_enabled = 1, updated_at = ?
			 WHERE id = ?`,
			string(r.Action), nullable(r.CustomResponse), nullable(r.Remark),
			formatTime(now()), id)
		if err != nil {
			return 0, fmt.Errorf("update rule: %w", err)
		}
	case errors.Is(err, sql.ErrNoRows):
		ts := formatTime(now())
		res, err := tx.ExecContext(ctx,
			`INSERT INTO interception_rules
			 (method_name, email, action, custom_response, remark, is_enabled, is_global, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.MethodName, nullable(email), string(r.Action), nullable(r.CustomResponse),
			nullable(r.Remark), r.Enabled, r.Global, ts, ts)
		if err != nil {
			return 0, fmt.Errorf("insert rule: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("insert rule id: %w", err)
		}
	default:
		return 0, fmt.Errorf("find rule scope: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return id, nil
}

// Update patches named fields of an existing rule inside one transaction.
func (s *RuleStore) Update(ctx context.Context, id int64, p rule.Patch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM interception_rules WHERE id = ?`, id)
	existing, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rule.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find rule: %w", err)
	}

	updated := *existing
	if p.MethodName != nil {
		updated.MethodName = *p.MethodName
	}
	if p.Email != nil {
		updated.Email = *p.Email
	}
	if p.Action != nil {
		updated.Action = *p.Action
	}
	if p.CustomResponse != nil {
		updated.CustomResponse = *p.CustomResponse
	}
	if p.Remark != nil {
		updated.Remark = *p.Remark
	}
	if p.Enabled != nil {
		updated.Enabled = *p.Enabled
	}
	if p.Global != nil {
		updated.Global = *p.Global
		if updated.Global {
			updated.Email = ""
		}
	}
	if err := updated.Validate(); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE interception_rules
		 SET method_name = ?, email = ?, action = ?, custom_response = ?, remark = ?,
		     is_enabled = ?, is_global = ?, updated_at = ?
		 WHERE id = ?`,
		updated.MethodName, nullable(updated.Email), string(updated.Action),
		nullable(updated.CustomResponse), nullable(updated.Remark),
		updated.Enabled, updated.Global, formatTime(now()), id)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return tx.Commit()
}

// Delete removes a rule. Returns rule.ErrNotFound when absent.
func (s *RuleStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interception_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n == 0 {
		return rule.ErrNotFound
	}
	return nil
}

var _ rule.Store = (*RuleStore)(nil)
