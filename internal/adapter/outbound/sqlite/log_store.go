package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lin-gate/lingate/internal/domain/auditlog"
)

// LogStore implements auditlog.Store on the request_logs table.
type LogStore struct {
	db *sql.DB
}

// NewLogStore creates a log store over an opened database.
func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// Append stores a record and returns its id.
func (s *LogStore) Append(ctx context.Context, rec *auditlog.Record) (int64, error) {
	created := rec.CreatedAt
	if created.IsZero() {
		created = now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO request_logs
		 (method, request_body, response_body, intercepted_request, intercepted_response,
		  request_interception_action, response_interception_action, email, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullable(rec.Method), nullable(rec.RequestBody), nullable(rec.ResponseBody),
		nullable(rec.InterceptedRequest), nullable(rec.InterceptedResponse),
		nullable(rec.RequestAction), nullable(rec.ResponseAction),
		nullable(rec.Email), formatTime(created))
	if err != nil {
		return 0, fmt.Errorf("append request log: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append request log id: %w", err)
	}
	return id, nil
}

func buildLogWhere(f auditlog.Filter) (string, []any) {
	where := ""
	var args []any
	if f.Method != "" {
		where = ` WHERE method = ?`
		args = append(args, f.Method)
	}
	if f.Search != "" {
		if where == "" {
			where = ` WHERE `
		} else {
			where += ` AND `
		}
		where += `(COALESCE(request_body,'') LIKE ? OR COALESCE(response_body,'') LIKE ?)`
		pat := "%" + f.Search + "%"
		args = append(args, pat, pat)
	}
	return where, args
}

// List returns matching records newest-first plus the unpaginated total.
func (s *LogStore) List(ctx context.Context, f auditlog.Filter) ([]auditlog.Record, int, error) {
	where, args := buildLogWhere(f)

	var total int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM request_logs`+where, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count request logs: %w", err)
	}

	q := `SELECT id, COALESCE(method,''), COALESCE(request_body,''), COALESCE(response_body,''),
	        COALESCE(intercepted_request,''), COALESCE(intercepted_response,''),
	        COALESCE(request_interception_action,''), COALESCE(response_interception_action,''),
	        COALESCE(email,''), created_at
	      FROM request_logs` + where + ` ORDER BY id DESC`
	if f.Limit > 0 {
		q += fmt.Sprintf(` LIMIT %d OFFSET %d`, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query request logs: %w", err)
	}
	defer rows.Close()

	var out []auditlog.Record
	for rows.Next() {
		var rec auditlog.Record
		var created string
		err := rows.Scan(&rec.ID, &rec.Method, &rec.RequestBody, &rec.ResponseBody,
			&rec.InterceptedRequest, &rec.InterceptedResponse,
			&rec.RequestAction, &rec.ResponseAction, &rec.Email, &created)
		if err != nil {
			return nil, 0, fmt.Errorf("scan request log: %w", err)
		}
		rec.CreatedAt = parseTime(created)
		out = append(out, rec)
	}
	return out, total, rows.Err()
}

func (s *LogStore) distinct(ctx context.Context, column string) ([]string, error) {
	q := fmt.Sprintf(
		`SELECT DISTINCT %s FROM request_logs WHERE %s IS NOT NULL AND %s != '' ORDER BY %s`,
		column, column, column, column)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("distinct %s: %w", column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan %s: %w", column, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Methods returns the distinct methods seen, sorted.
func (s *LogStore) Methods(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "method")
}

// Emails returns the distinct caller identities seen, sorted.
func (s *LogStore) Emails(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "email")
}

// Stats summarizes the audit trail for the admin dashboard.
func (s *LogStore) Stats(ctx context.Context) (auditlog.Stats, error) {
	st := auditlog.Stats{
		ByMethod: make(map[string]int),
		ByAction: make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN request_interception_action IS NOT NULL
		                           OR response_interception_action IS NOT NULL
		                         THEN 1 ELSE 0 END), 0)
		FROM request_logs`).Scan(&st.Total, &st.Intercepted)
	if err != nil {
		return st, fmt.Errorf("stats totals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(method,''), COUNT(*) FROM request_logs GROUP BY method`)
	if err != nil {
		return st, fmt.Errorf("stats by method: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m string
		var n int
		if err := rows.Scan(&m, &n); err != nil {
			return st, fmt.Errorf("scan method stat: %w", err)
		}
		st.ByMethod[m] = n
	}
	if err := rows.Err(); err != nil {
		return st, err
	}

	actionRows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*) FROM (
			SELECT request_interception_action AS action FROM request_logs
			 WHERE request_interception_action IS NOT NULL
			UNION ALL
			SELECT response_interception_action FROM request_logs
			 WHERE response_interception_action IS NOT NULL
		) GROUP BY action`)
	if err != nil {
		return st, fmt.Errorf("stats by action: %w", err)
	}
	defer actionRows.Close()
	for actionRows.Next() {
		var a string
		var n int
		if err := actionRows.Scan(&a, &n); err != nil {
			return st, fmt.Errorf("scan action stat: %w", err)
		}
		st.ByAction[a] = n
	}
	return st, actionRows.Err()
}

var _ auditlog.Store = (*LogStore)(nil)
