package graphql

import (
	"fmt"
)

// LimitConfig defines limits for list results
type LimitConfig struct {
	DefaultLimit int // Default limit when no limit specified
	MaxLimit     int // Maximum allowed limit
	MaxDepth     int // Maximum selection depth, 0 disables the check
}

// DefaultLimitConfig returns the limits used by kg-server.
func DefaultLimitConfig() *LimitConfig {
	return &LimitConfig{DefaultLimit: 100, MaxLimit: 10000, MaxDepth: 6}
}

// ValidateLimitConfig validates the limit configuration
func ValidateLimitConfig(config *LimitConfig) error {
	if config == nil {
		return fmt.Errorf("limit config is required")
	}
	if config.MaxLimit <= 0 {
		return fmt.Errorf("max limit must be greater than 0, got %d", config.MaxLimit)
	}
	if config.DefaultLimit > config.MaxLimit {
		return fmt.Errorf("default limit (%d) cannot exceed max limit (%d)", config.DefaultLimit, config.MaxLimit)
	}
	if config.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be greater than 0, got %d", config.DefaultLimit)
	}
	if config.MaxDepth < 0 {
		return fmt.Errorf("max depth cannot be negative, got %d", config.MaxDepth)
	}
	return nil
}

// applyLimit applies default and max limit constraints to a limit value
func applyLimit(requestedLimit int, config *LimitConfig) int {
	// If no limit specified or negative, use default
	if requestedLimit < 0 {
		return config.DefaultLimit
	}

	// If limit is 0, return 0 (empty results)
	if requestedLimit == 0 {
		return 0
	}

	// Cap at max limit
	if requestedLimit > config.MaxLimit {
		return config.MaxLimit
	}

	return requestedLimit
}

// limitArg reads the optional "limit" argument, -1 when absent.
func limitArg(args map[string]any) int {
	if v, ok := args["limit"].(int); ok {
		return v
	}
	return -1
}

func truncate[T any](items []T, limit int) []T {
	if limit < len(items) {
		return items[:limit]
	}
	return items
}
