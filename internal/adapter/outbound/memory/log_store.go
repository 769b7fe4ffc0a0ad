package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lin-gate/lingate/internal/domain/auditlog"
)

// LogStore implements auditlog.Store with an append-only slice.
type LogStore struct {
	mu      sync.RWMutex
	records []auditlog.Record
	nextID  int64
}

// NewLogStore creates an empty log store.
func NewLogStore() *LogStore {
	return &LogStore{nextID: 1}
}

// Append stores a record and returns its id.
func (s *LogStore) Append(ctx context.Context, rec *auditlog.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	cp.ID = s.nextID
	s.nextID++
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	s.records = append(s.records, cp)
	return cp.ID, nil
}

func matches(rec *auditlog.Record, f auditlog.Filter) bool {
	if f.Method != "" && rec.Method != f.Method {
		return false
	}
	if f.Search != "" &&
		!strings.Contains(rec.RequestBody, f.Search) &&
		!strings.Contains(rec.ResponseBody, f.Search) {
		return false
	}
	return true
}

// List returns matching records newest-first plus the unpaginated total.
func (s *LogStore) List(ctx context.Context, f auditlog.Filter) ([]auditlog.Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []auditlog.Record
	for i := len(s.records) - 1; i >= 0; i-- {
		if matches(&s.records[i], f) {
			all = append(all, s.records[i])
		}
	}
	total := len(all)

	if f.Offset > 0 {
		if f.Offset >= len(all) {
			all = nil
		} else {
			all = all[f.Offset:]
		}
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

// Methods returns the distinct methods seen, sorted.
func (s *LogStore) Methods(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(s.records, func(r *auditlog.Record) string { return r.Method }), nil
}

// Emails returns the distinct caller identities seen, sorted.
func (s *LogStore) Emails(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return distinct(s.records, func(r *auditlog.Record) string { return r.Email }), nil
}

func distinct(records []auditlog.Record, key func(*auditlog.Record) string) []string {
	seen := make(map[string]struct{})
	var out []string
	for i := range records {
		k := key(&records[i])
		if k == "" {
			continue
		}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Stats summarizes the audit trail.
func (s *LogStore) Stats(ctx context.Context) (auditlog.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := auditlog.Stats{
		ByMethod: make(map[string]int),
		ByAction: make(map[string]int),
	}
	for i := range s.records {
		rec := &s.records[i]
		st.Total++
		st.ByMethod[rec.Method]++
		if rec.RequestAction != "" || rec.ResponseAction != "" {
			st.Intercepted++
		}
		if rec.RequestAction != "" {
			st.ByAction[rec.RequestAction]++
		}
		if rec.ResponseAction != "" {
			st.ByAction[rec.ResponseAction]++
		}
	}
	return st, nil
}

var _ auditlog.Store = (*LogStore)(nil)
