package util

import (
	"fmt"
	"time"
)

// ParseDuration reads a duration out of a decoded config value. Block
// definitions express intervals either as a bare number of seconds
// (integer or float) or as a Go duration string like "5s" or "30m".
func ParseDuration(v any) (time.Duration, error) {
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case int:
		return time.Duration(val) * time.Second, nil
	case int64:
		return time.Duration(val) * time.Second, nil
	case float64:
		return time.Duration(val * float64(time.Second)), nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", val, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("invalid duration value %v (%T)", v, v)
	}
}
