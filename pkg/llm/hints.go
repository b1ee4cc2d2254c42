package llm

import (
	"strconv"
	"time"
)

// Well-known provider hint keys.
const (
	// HintNoCache disables the cache middleware for one request. The value
	// may be a bool, the string "true", or a non-zero number.
	HintNoCache = "no_cache"

	// HintCacheTTLSeconds sets the cache TTL in seconds. Takes precedence
	// over HintCacheTTL.
	HintCacheTTLSeconds = "cache_ttl_seconds"

	// HintCacheTTL sets the cache TTL in seconds (legacy spelling).
	HintCacheTTL = "cache_ttl"
)

// HintBool reads a boolean-ish hint. Accepted truthy encodings: true, the
// string "true", and any non-zero integer or float. Everything else,
// including a missing key, reads as false.
func HintBool(hints map[string]any, key string) bool {
	v, ok := hints[key]
	if !ok {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(val)
		return err == nil && b
	case int:
		return val != 0
	case int32:
		return val != 0
	case int64:
		return val != 0
	case float32:
		return val != 0
	case float64:
		return val != 0
	default:
		return false
	}
}

// HintSeconds reads a numeric hint as a duration in seconds. Returns zero
// when the key is missing or not a positive number.
func HintSeconds(hints map[string]any, key string) time.Duration {
	v, ok := hints[key]
	if !ok {
		return 0
	}
	var secs float64
	switch val := v.(type) {
	case int:
		secs = float64(val)
	case int32:
		secs = float64(val)
	case int64:
		secs = float64(val)
	case float32:
		secs = float64(val)
	case float64:
		secs = val
	case string:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0
		}
		secs = f
	default:
		return 0
	}
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
