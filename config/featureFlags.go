package config

import (
	"os"
	"strings"
)

// StrictFieldMapping disables the implicit default legacy column mapping.
// Batches must then carry an explicit key column (request or stored config), and a
// "titulo" key field requires an explicit title column instead of falling back to the key column.
//
// Set via env:
// - STRICT_FIELD_MAPPING=true
func StrictFieldMapping() bool {
	return envBoolDefault("STRICT_FIELD_MAPPING", false)
}

// AutoResolveEnabled controls whether reading an audit page promotes consistent
// PENDING items to SYNCED.
//
// Set via env:
// - AUTO_RESOLVE_ENABLED=false
func AutoResolveEnabled() bool {
	return envBoolDefault("AUTO_RESOLVE_ENABLED", true)
}

// RateLimitEnabled turns on the Redis fixed window limiter in front of the API.
func RateLimitEnabled() bool {
	return envBoolDefault("RATE_LIMIT_ENABLED", false)
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
