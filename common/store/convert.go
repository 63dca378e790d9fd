package store

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Backends hand back driver-native values (int32 vs int64, []byte JSON vs
// decoded maps, 0/1 booleans). These helpers fold them into one shape.

// Int64 reads an integer column
func Int64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	case []byte:
		i, err := strconv.ParseInt(string(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

// Float64 reads a numeric column
func Float64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// String reads a text column
func String(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case nil:
		return "", false
	}
	return fmt.Sprint(v), true
}

// Bool reads a boolean column
func Bool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	case float64:
		return b != 0
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	}
	return false
}

// JSONMap reads a JSON object column. Undecodable values yield nil.
func JSONMap(v any) map[string]any {
	switch m := v.(type) {
	case map[string]any:
		return m
	case Row:
		return map[string]any(m)
	case []byte:
		return decodeObject(m)
	case string:
		return decodeObject([]byte(m))
	}
	return nil
}

func decodeObject(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// timeLayouts covers RFC 3339 and the SQLite CURRENT_TIMESTAMP format
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Time reads a timestamp column
func Time(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	case []byte:
		return Time(string(t))
	}
	return time.Time{}, false
}

// StringPtr reads a nullable text column
func StringPtr(v any) *string {
	if v == nil {
		return nil
	}
	s, ok := String(v)
	if !ok {
		return nil
	}
	return &s
}

// Float64Ptr reads a nullable numeric column
func Float64Ptr(v any) *float64 {
	f, ok := Float64(v)
	if !ok {
		return nil
	}
	return &f
}

// Int64Ptr reads a nullable integer column
func Int64Ptr(v any) *int64 {
	i, ok := Int64(v)
	if !ok {
		return nil
	}
	return &i
}

// TimePtr reads a nullable timestamp column
func TimePtr(v any) *time.Time {
	t, ok := Time(v)
	if !ok {
		return nil
	}
	return &t
}

// SameValue compares two column values after folding driver representations
func SameValue(a, b any) bool {
	if ai, ok := Int64(a); ok {
		if bi, ok := Int64(b); ok {
			return ai == bi
		}
	}
	if af, ok := Float64(a); ok {
		if bf, ok := Float64(b); ok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		return ab == Bool(b)
	}
	if bb, ok := b.(bool); ok {
		return bb == Bool(a)
	}
	as, aok := String(a)
	bs, bok := String(b)
	return aok && bok && as == bs
}
