// Package action implements the interception transforms applied to decrypted
// JSON-RPC envelopes. All transforms are pure: no I/O, randomness injected.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/lin-gate/lingate/internal/domain/rpc"
	"github.com/lin-gate/lingate/internal/domain/rule"
)

// Rand supplies the randomness the duration transform needs. *rand.Rand
// satisfies it; tests inject a seeded source.
type Rand interface {
	Intn(n int) int
	Perm(n int) []int
}

// globalRand delegates to math/rand's locked top-level source, which is safe
// for concurrent use across request handlers.
type globalRand struct{}

func (globalRand) Intn(n int) int   { return rand.Intn(n) }
func (globalRand) Perm(n int) []int { return rand.Perm(n) }

// DefaultRand is the process-wide randomness source.
var DefaultRand Rand = globalRand{}

// Result is the outcome of applying a rule to a request envelope.
type Result struct {
	// Envelope is the outbound envelope. It is the input envelope untouched
	// for passthrough, or a deep copy carrying the transformation.
	Envelope *rpc.Envelope
	// ResponseOverride holds the prepared response plaintext when the rule
	// short-circuits the upstream entirely.
	ResponseOverride string
	// ShortCircuit is set by replace: no upstream request is issued.
	ShortCircuit bool
	// RequestAction / ResponseAction name the action that fired on each
	// side, for the audit record. Empty when that side was untouched.
	RequestAction  string
	ResponseAction string
	// RuleInfo is a trace of what the transform did (randomize only),
	// attached to the logged intercepted request for operator diagnosis.
	RuleInfo map[string]any
}

// Apply dispatches on the rule's action. A nil rule is a passthrough. The
// returned error means the rule could not be applied (malformed
// custom_response for replace/modify); the caller falls back to passthrough.
func Apply(r *rule.Rule, env *rpc.Envelope, rng Rand) (Result, error) {
	if r == nil {
		return Result{Envelope: env}, nil
	}
	switch r.Action {
	case rule.ActionReplace:
		return applyReplace(r)
	case rule.ActionModify:
		return applyModify(r, env)
	case rule.ActionRandomizeAppDuration:
		return applyRandomizeDuration(r, env, rng)
	default: // passthrough
		return Result{Envelope: env}, nil
	}
}

// applyReplace prepares the canned response and short-circuits the upstream.
// The custom response is compacted but otherwise forwarded byte-for-byte, so
// the operator's key ordering survives.
func applyReplace(r *rule.Rule) (Result, error) {
	if r.CustomResponse == "" || !json.Valid([]byte(r.CustomResponse)) {
		return Result{}, fmt.Errorf("replace rule %d: custom_response is not valid JSON", r.ID)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(r.CustomResponse)); err != nil {
		return Result{}, fmt.Errorf("replace rule %d: %w", r.ID, err)
	}
	return Result{
		ResponseOverride: buf.String(),
		ShortCircuit:     true,
		ResponseAction:   string(rule.ActionReplace),
	}, nil
}

// applyModify swaps the outbound params for the rule's custom_response and
// lets the exchange continue to the upstream. The response comes back
// unmodified.
func applyModify(r *rule.Rule, env *rpc.Envelope) (Result, error) {
	var params any
	if err := json.Unmarshal([]byte(r.CustomResponse), &params); err != nil {
		return Result{}, fmt.Errorf("modify rule %d: custom_response is not valid JSON: %w", r.ID, err)
	}
	out := env.Clone()
	out.SetParams(params)
	return Result{
		Envelope:      out,
		RequestAction: string(rule.ActionModify),
	}, nil
}
