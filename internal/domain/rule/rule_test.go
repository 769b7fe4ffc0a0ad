package rule

import (
	"errors"
	"testing"
	"time"
)

func mkRule(id int64, method, email string, global bool, age time.Duration) Rule {
	return Rule{
		ID:         id,
		MethodName: method,
		Email:      email,
		Action:     ActionReplace,
		Enabled:    true,
		Global:     global,
		CreatedAt:  time.Now().Add(-age),
	}
}

func TestAction_Valid(t *testing.T) {
	for _, a := range []Action{ActionPassthrough, ActionModify, ActionReplace, ActionRandomizeAppDuration} {
		if !a.Valid() {
			t.Errorf("Action %q should be valid", a)
		}
	}
	for _, a := range []Action{"", "drop", "REPLACE"} {
		if a.Valid() {
			t.Errorf("Action %q should be invalid", a)
		}
	}
}

func TestMatchesEmail(t *testing.T) {
	r := Rule{Email: "a@x.com, b@x.com"}

	if !r.MatchesEmail("a@x.com") {
		t.Error("a@x.com should match")
	}
	if !r.MatchesEmail("b@x.com") {
		t.Error("b@x.com should match after trimming whitespace")
	}
	if r.MatchesEmail("c@x.com") {
		t.Error("c@x.com should not match")
	}
	if r.MatchesEmail("A@x.com") {
		t.Error("matching is case-sensitive")
	}
	if r.MatchesEmail("") {
		t.Error("empty caller never matches")
	}
	if (&Rule{}).MatchesEmail("a@x.com") {
		t.Error("empty allowlist never matches")
	}
}

func TestResolve_UserBeatsGlobal(t *testing.T) {
	rules := []Rule{
		mkRule(2, "getCmd", "u@x", false, time.Hour),
		mkRule(1, "getCmd", "", true, 2*time.Hour),
	}

	if got := Resolve(rules, "u@x"); got == nil || got.ID != 2 {
		t.Errorf("caller u@x: got %+v, want user rule 2", got)
	}
	if got := Resolve(rules, "v@x"); got == nil || got.ID != 1 {
		t.Errorf("caller v@x: got %+v, want global rule 1", got)
	}
	if got := Resolve(rules, ""); got == nil || got.ID != 1 {
		t.Errorf("anonymous caller: got %+v, want global rule 1", got)
	}
}

func TestResolve_RecencyWithinScope(t *testing.T) {
	// Newest-first ordering is the store's contract; the first match wins.
	rules := []Rule{
		mkRule(3, "m", "u@x", false, time.Hour),
		mkRule(2, "m", "u@x, v@x", false, 2*time.Hour),
	}
	if got := Resolve(rules, "u@x"); got == nil || got.ID != 3 {
		t.Errorf("got %+v, want the newer rule 3", got)
	}
	if got := Resolve(rules, "v@x"); got == nil || got.ID != 2 {
		t.Errorf("got %+v, want rule 2 for v@x", got)
	}
}

func TestResolve_PartialRowsInvisible(t *testing.T) {
	rules := []Rule{
		// Global rule that still carries an email: invisible.
		mkRule(1, "m", "u@x", true, time.Hour),
		// User-scoped rule without an email: invisible.
		mkRule(2, "m", "", false, time.Hour),
	}
	if got := Resolve(rules, "u@x"); got != nil {
		t.Errorf("partially specified rows must not resolve, got %+v", got)
	}
}

func TestResolve_Empty(t *testing.T) {
	if got := Resolve(nil, "u@x"); got != nil {
		t.Errorf("empty rule set resolved %+v", got)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	rules := []Rule{
		mkRule(5, "m", "u@x", false, time.Hour),
		mkRule(4, "m", "", true, 2*time.Hour),
		mkRule(3, "m", "v@x", false, 3*time.Hour),
	}
	first := Resolve(rules, "u@x")
	for i := 0; i < 10; i++ {
		if got := Resolve(rules, "u@x"); got.ID != first.ID {
			t.Fatalf("resolution not deterministic: %d vs %d", got.ID, first.ID)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		rule    Rule
		wantErr error
	}{
		{"passthrough ok", Rule{MethodName: "m", Action: ActionPassthrough}, nil},
		{"bad action", Rule{MethodName: "m", Action: "drop"}, ErrInvalidAction},
		{"replace without body", Rule{MethodName: "m", Action: ActionReplace}, ErrCustomResponseRequired},
		{"replace bad json", Rule{MethodName: "m", Action: ActionReplace, CustomResponse: "{oops"}, ErrCustomResponseRequired},
		{"replace ok", Rule{MethodName: "m", Action: ActionReplace, CustomResponse: `{"g":1}`}, nil},
		{"modify without body", Rule{MethodName: "m", Action: ActionModify}, ErrCustomResponseRequired},
		{"randomize without body ok", Rule{MethodName: "m", Action: ActionRandomizeAppDuration}, nil},
	}
	for _, tc := range cases {
		err := tc.rule.Validate()
		if tc.wantErr == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}

	global := Rule{MethodName: "m", Action: ActionPassthrough, Global: true, Email: "u@x"}
	if err := global.Validate(); err == nil {
		t.Error("global rule with email scope must fail validation")
	}
}
