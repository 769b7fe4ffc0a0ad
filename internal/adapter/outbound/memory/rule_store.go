// Package memory provides in-memory store implementations used by tests and
// the dev mode. All stores are safe for concurrent use and mirror the SQLite
// adapters' semantics, including upsert identity and result ordering.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lin-gate/lingate/internal/domain/rule"
)

// RuleStore implements rule.Store with a map keyed by id.
type RuleStore struct {
	mu     sync.RWMutex
	rules  map[int64]*rule.Rule
	nextID int64
}

// NewRuleStore creates an empty rule store.
func NewRuleStore() *RuleStore {
	return &RuleStore{rules: make(map[int64]*rule.Rule), nextID: 1}
}

func copyRule(r *rule.Rule) *rule.Rule {
	cp := *r
	return &cp
}

// scopeKey is the upsert identity: global rules collapse to an empty email.
func scopeKey(r *rule.Rule) (string, string) {
	if r.Global {
		return r.MethodName, ""
	}
	return r.MethodName, r.Email
}

// ListAll returns every rule, newest-first.
func (s *RuleStore) ListAll(ctx context.Context) ([]rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]rule.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, *copyRule(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// FindByID returns rule.ErrNotFound when absent.
func (s *RuleStore) FindByID(ctx context.Context, id int64) (*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, rule.ErrNotFound
	}
	return copyRule(r), nil
}

// Resolve returns the applicable enabled rule for (method, email), or nil.
func (s *RuleStore) Resolve(ctx context.Context, method, email string) (*rule.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []rule.Rule
	for _, r := range s.rules {
		if r.Enabled && r.MethodName == method {
			candidates = append(candidates, *copyRule(r))
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID > candidates[j].ID })
	return rule.Resolve(candidates, email), nil
}

// Upsert writes a rule keyed by (method_name, effective email scope).
func (s *RuleStore) Upsert(ctx context.Context, r rule.Rule) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	method, email := scopeKey(&r)
	for id, existing := range s.rules {
		em, ee := scopeKey(existing)
		if em == method && ee == email && existing.Global == r.Global {
			r.ID = id
			r.CreatedAt = existing.CreatedAt
			r.UpdatedAt = now
			r.Enabled = true
			s.rules[id] = copyRule(&r)
			return id, nil
		}
	}

	r.ID = s.nextID
	s.nextID++
	r.CreatedAt = now
	r.UpdatedAt = now
	s.rules[r.ID] = copyRule(&r)
	return r.ID, nil
}

// Update patches named fields of an existing rule.
func (s *RuleStore) Update(ctx context.Context, id int64, p rule.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[id]
	if !ok {
		return rule.ErrNotFound
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
	updated.UpdatedAt = time.Now()
	s.rules[id] = &updated
	return nil
}

// Delete removes a rule. Returns rule.ErrNotFound when absent.
func (s *RuleStore) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rules[id]; !ok {
		return rule.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

var _ rule.Store = (*RuleStore)(nil)
