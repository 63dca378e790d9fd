package ratelimit

import "time"

// Rule is a limit per fixed window
type Rule struct {
	Name   string
	Limit  int64
	Window time.Duration
}

// WindowSeconds rounds the window up to whole seconds, minimum one
func (r Rule) WindowSeconds() int {
	secs := int((r.Window + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

// DefaultGlobalGenerate caps LLM generation across all clients
var DefaultGlobalGenerate = Rule{
	Name:   "generate:global",
	Limit:  100,
	Window: time.Minute,
}

// GenerateRule is the per-client generation limit
func GenerateRule(limit int64, window time.Duration) Rule {
	return Rule{Name: "generate:client", Limit: limit, Window: window}
}

// PasswordAttempts limits login attempts per address
var PasswordAttempts = Rule{
	Name:   "auth:client",
	Limit:  10,
	Window: time.Minute,
}
