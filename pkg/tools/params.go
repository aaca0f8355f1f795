package tools

import (
	"github.com/attache/attache/pkg/fault"
)

// Parameter extraction helpers. Tool parameters arrive as a decoded JSON
// object, so numbers are float64 and everything needs a type assertion.

func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok {
		return "", fault.BadInput("missing required parameter %q", key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fault.BadInput("parameter %q must be a non-empty string", key)
	}
	return s, nil
}

func optionalStringParam(params map[string]any, key, fallback string) string {
	if s, ok := params[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func intParam(params map[string]any, key string) (int, error) {
	raw, ok := params[key]
	if !ok {
		return 0, fault.BadInput("missing required parameter %q", key)
	}
	n, ok := toInt(raw)
	if !ok {
		return 0, fault.BadInput("parameter %q must be a number", key)
	}
	return n, nil
}

func optionalIntParam(params map[string]any, key string, fallback int) int {
	if raw, ok := params[key]; ok {
		if n, ok := toInt(raw); ok {
			return n
		}
	}
	return fallback
}

func optionalFloatParam(params map[string]any, key string, fallback float64) float64 {
	switch n := params[key].(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return fallback
	}
}

func toInt(raw any) (int, bool) {
	switch n := raw.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}
