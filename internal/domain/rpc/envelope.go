// Package rpc models the JSON-RPC envelope carried between managed endpoints
// and the control server. The envelope is treated as a tagged generic map:
// only method, params, and a short allowlist of identity-bearing keys are
// promoted; the rest of the payload is opaque.
package rpc

import (
	"encoding/json"
	"errors"
)

// ErrNotObject is returned when the body is valid JSON but not a JSON object,
// or when a modern envelope carries a non-object "content" field.
var ErrNotObject = errors.New("envelope is not a JSON object")

// emailKeys is the ordered allowlist of params keys scanned for the caller's
// identity. The first non-empty string value wins.
var emailKeys = []string{"email", "userEmail", "user_email", "username", "userId", "user_id", "user"}

// Envelope wraps a decoded JSON-RPC message. Two shapes exist on the wire:
//
//	{"!version":1,"client_version":"1","id":1,"jsonrpc":"2.0",
//	 "content":{"method":"...","params":...}}
//
// and the legacy flat shape where method and params sit at the top level.
// Envelope normalizes access to method/params across both.
type Envelope struct {
	root    map[string]any
	content map[string]any // nil for the legacy flat shape
}

// Parse decodes body into an Envelope. Returns ErrNotObject when the body
// decodes to something other than a JSON object; the caller treats that as
// uninterceptable traffic and forwards it untouched.
func Parse(body []byte) (*Envelope, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	root, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	e := &Envelope{root: root}
	if c, present := root["content"]; present {
		cm, ok := c.(map[string]any)
		if !ok {
			return nil, ErrNotObject
		}
		e.content = cm
	}
	return e, nil
}

// holder returns the map that carries method/params for this shape.
func (e *Envelope) holder() map[string]any {
	if e.content != nil {
		return e.content
	}
	return e.root
}

// Method returns the RPC method name, or "" when absent.
func (e *Envelope) Method() string {
	m, _ := e.holder()["method"].(string)
	return m
}

// Params returns the raw params value: a map after decryption, a string while
// still encrypted, or nil when absent.
func (e *Envelope) Params() any {
	return e.holder()["params"]
}

// SetParams replaces the params value in place.
func (e *Envelope) SetParams(v any) {
	e.holder()["params"] = v
}

// Email scans params for the caller's identity. When params is a JSON string
// (for example a decrypt fallback left it raw), one level of re-parse is
// attempted before scanning. Returns "" when no identity key is present.
func (e *Envelope) Email() string {
	switch p := e.Params().(type) {
	case map[string]any:
		return emailFromMap(p)
	case string:
		var v any
		if err := json.Unmarshal([]byte(p), &v); err != nil {
			return ""
		}
		if m, ok := v.(map[string]any); ok {
			return emailFromMap(m)
		}
	}
	return ""
}

func emailFromMap(m map[string]any) string {
	for _, key := range emailKeys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Marshal renders the envelope back to JSON.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e.root)
}

// Clone returns a deep copy. Mutations of the copy (params rewrites, usage
// log edits) never leak into the original.
func (e *Envelope) Clone() *Envelope {
	root := deepCopyMap(e.root)
	c := &Envelope{root: root}
	if e.content != nil {
		// The copied content map is reachable from the copied root.
		c.content, _ = root["content"].(map[string]any)
	}
	return c
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}
