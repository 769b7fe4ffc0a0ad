package action

import (
	"encoding/json"
	"sort"

	"github.com/lin-gate/lingate/internal/domain/rpc"
	"github.com/lin-gate/lingate/internal/domain/rule"
)

// durationConfig parameterizes the usage-log transform. It is parsed from the
// rule's custom_response; missing or unparsable fields fall back to defaults.
// An explicit keep_count of 0 is honored and drops every targeted entry.
type durationConfig struct {
	Packages           []string
	MaxDurationMinutes int
	KeepCount          int
}

func parseDurationConfig(raw string) durationConfig {
	var in struct {
		Packages           []string `json:"packages"`
		MaxDurationMinutes int      `json:"max_duration_minutes"`
		KeepCount          *int     `json:"keep_count"`
	}
	if raw != "" {
		_ = json.Unmarshal([]byte(raw), &in)
	}

	cfg := durationConfig{
		Packages:           in.Packages,
		MaxDurationMinutes: in.MaxDurationMinutes,
		KeepCount:          2,
	}
	if len(cfg.Packages) == 0 {
		cfg.Packages = []string{"com.kingsoft"}
	}
	if cfg.MaxDurationMinutes <= 0 {
		cfg.MaxDurationMinutes = 30
	}
	if in.KeepCount != nil && *in.KeepCount >= 0 {
		cfg.KeepCount = *in.KeepCount
	}
	return cfg
}

// applyRandomizeDuration rewrites app-usage log entries for the configured
// packages: over-long sessions get a uniformly random duration no greater
// than the cap, and per-package entry counts are thinned to keep_count by
// sampling without replacement. Entries for other packages pass untouched.
//
// The transform fires (and is recorded in the audit log) even when the batch
// carries nothing to rewrite; the envelope then goes out unchanged.
func applyRandomizeDuration(r *rule.Rule, env *rpc.Envelope, rng Rand) (Result, error) {
	cfg := parseDurationConfig(r.CustomResponse)

	out := env.Clone()
	fired := Result{
		Envelope:      out,
		RequestAction: string(rule.ActionRandomizeAppDuration),
	}

	params, ok := out.Params().(map[string]any)
	if !ok {
		return fired, nil
	}
	logs, ok := params["logs"].([]any)
	if !ok || len(logs) == 0 {
		return fired, nil
	}

	targeted := make(map[string]struct{}, len(cfg.Packages))
	for _, p := range cfg.Packages {
		targeted[p] = struct{}{}
	}
	maxMs := int64(cfg.MaxDurationMinutes) * 60_000

	// Partition into untargeted survivors and per-package groups, keeping
	// first-seen group order so output is deterministic per run.
	var survivors []any
	groups := make(map[string][]map[string]any)
	var groupOrder []string
	for _, entry := range logs {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		pkg, _ := m["mPackageName"].(string)
		if _, hit := targeted[pkg]; !hit {
			survivors = append(survivors, entry)
			continue
		}
		if _, seen := groups[pkg]; !seen {
			groupOrder = append(groupOrder, pkg)
		}
		groups[pkg] = append(groups[pkg], m)
	}

	var details []map[string]any
	for _, pkg := range groupOrder {
		group := groups[pkg]

		for _, m := range group {
			begin := asInt64(m["mBeginTimeStamp"])
			end := asInt64(m["mEndTimeStamp"])
			duration := end - begin
			if duration <= maxMs {
				continue
			}
			// Random whole seconds in [1, max_duration_minutes*60].
			seconds := int64(rng.Intn(cfg.MaxDurationMinutes*60)) + 1
			newDuration := seconds * 1000
			m["mEndTimeStamp"] = begin + newDuration
			m["mDuration"] = newDuration
			details = append(details, map[string]any{
				"package":              pkg,
				"original_duration_ms": duration,
				"new_duration_ms":      newDuration,
				"original_end_time":    end,
				"new_end_time":         begin + newDuration,
			})
		}

		if len(group) > cfg.KeepCount {
			keep := rng.Perm(len(group))[:cfg.KeepCount]
			sort.Ints(keep)
			thinned := make([]map[string]any, 0, cfg.KeepCount)
			for _, idx := range keep {
				thinned = append(thinned, group[idx])
			}
			details = append(details, map[string]any{
				"action":         "reduce_count",
				"package":        pkg,
				"original_count": len(group),
				"new_count":      cfg.KeepCount,
			})
			group = thinned
		}

		for _, m := range group {
			survivors = append(survivors, m)
		}
	}

	params["logs"] = survivors
	fired.RuleInfo = map[string]any{
		"method": env.Method(),
		"action": string(rule.ActionRandomizeAppDuration),
		"config": map[string]any{
			"packages":             cfg.Packages,
			"max_duration_minutes": cfg.MaxDurationMinutes,
			"keep_count":           cfg.KeepCount,
		},
		"action_details": details,
	}
	return fired, nil
}

// asInt64 coerces the numeric shapes json.Unmarshal produces.
func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}
