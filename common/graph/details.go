package graph

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Reserved details keys. Everything else lands in Details.Extra.
const (
	keyGoldenPath  = "goldenPath"
	keySummary     = "summary"
	keyRules       = "rules"
	keyRunbook     = "runbook"
	keyOwner       = "owner"
	keyCriticality = "criticality"
	keyTimers      = "timers"
)

// Timers are the per-step SLA thresholds in seconds
type Timers struct {
	NormalSec     *int `json:"normal_sec,omitempty"`
	NearCutoffSec *int `json:"near_cutoff_sec,omitempty"`
}

// Details is the metadata bag carried by a node. The reserved keys are typed;
// unknown keys are preserved verbatim in Extra so a load/save round trip never
// drops fields written by other clients.
type Details struct {
	GoldenPath  bool
	Summary     string
	Rules       []string
	Runbook     string
	Owner       string
	Criticality string
	Timers      *Timers
	Extra       map[string]any
}

// DetailsFromMap decodes a raw JSON bag. Reserved keys with an unexpected
// shape are kept in Extra rather than rejected.
func DetailsFromMap(raw map[string]any) Details {
	var d Details
	for k, v := range raw {
		if !d.setReserved(k, v) {
			if d.Extra == nil {
				d.Extra = make(map[string]any)
			}
			d.Extra[k] = deepCopyValue(v)
		}
	}
	return d
}

func (d *Details) setReserved(key string, v any) bool {
	switch key {
	case keyGoldenPath:
		b, ok := v.(bool)
		if ok {
			d.GoldenPath = b
		}
		return ok
	case keySummary:
		return setString(&d.Summary, v)
	case keyRunbook:
		return setString(&d.Runbook, v)
	case keyOwner:
		return setString(&d.Owner, v)
	case keyCriticality:
		return setString(&d.Criticality, v)
	case keyRules:
		switch rules := v.(type) {
		case []string:
			d.Rules = append([]string(nil), rules...)
			return true
		case []any:
			out := make([]string, 0, len(rules))
			for _, r := range rules {
				s, ok := r.(string)
				if !ok {
					return false
				}
				out = append(out, s)
			}
			d.Rules = out
			return true
		case string:
			d.Rules = []string{rules}
			return true
		}
		return false
	case keyTimers:
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		t := &Timers{}
		for name, dst := range map[string]**int{"normal_sec": &t.NormalSec, "near_cutoff_sec": &t.NearCutoffSec} {
			raw, present := m[name]
			if !present {
				continue
			}
			n, ok := toInt(raw)
			if !ok {
				return false
			}
			*dst = &n
		}
		d.Timers = t
		return true
	}
	return false
}

// ToMap encodes the bag back into its JSON shape. goldenPath is always written.
func (d Details) ToMap() map[string]any {
	out := make(map[string]any, len(d.Extra)+7)
	for k, v := range d.Extra {
		out[k] = deepCopyValue(v)
	}
	out[keyGoldenPath] = d.GoldenPath
	if d.Summary != "" {
		out[keySummary] = d.Summary
	}
	if d.Rules != nil {
		rules := make([]any, len(d.Rules))
		for i, r := range d.Rules {
			rules[i] = r
		}
		out[keyRules] = rules
	}
	if d.Runbook != "" {
		out[keyRunbook] = d.Runbook
	}
	if d.Owner != "" {
		out[keyOwner] = d.Owner
	}
	if d.Criticality != "" {
		out[keyCriticality] = d.Criticality
	}
	if d.Timers != nil {
		timers := map[string]any{}
		if d.Timers.NormalSec != nil {
			timers["normal_sec"] = *d.Timers.NormalSec
		}
		if d.Timers.NearCutoffSec != nil {
			timers["near_cutoff_sec"] = *d.Timers.NearCutoffSec
		}
		out[keyTimers] = timers
	}
	return out
}

// Clone returns a deep copy
func (d Details) Clone() Details {
	c := d
	if d.Rules != nil {
		c.Rules = append([]string(nil), d.Rules...)
	}
	if d.Timers != nil {
		t := Timers{}
		if d.Timers.NormalSec != nil {
			n := *d.Timers.NormalSec
			t.NormalSec = &n
		}
		if d.Timers.NearCutoffSec != nil {
			n := *d.Timers.NearCutoffSec
			t.NearCutoffSec = &n
		}
		c.Timers = &t
	}
	if d.Extra != nil {
		c.Extra = make(map[string]any, len(d.Extra))
		for k, v := range d.Extra {
			c.Extra[k] = deepCopyValue(v)
		}
	}
	return c
}

// MarshalJSON implements json.Marshaler
func (d Details) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToMap())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Details) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode details: %w", err)
	}
	*d = DetailsFromMap(raw)
	return nil
}

func setString(dst *string, v any) bool {
	s, ok := v.(string)
	if ok {
		*dst = s
	}
	return ok
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := strconv.Atoi(n.String())
		return i, err == nil
	}
	return 0, false
}

// deepCopyValue copies the JSON-shaped values that can appear in a details bag
func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = deepCopyValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = deepCopyValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
