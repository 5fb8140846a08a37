package status

import (
	"fmt"
	"math"

	"github.com/jaakkos/agentbar/internal/domain"
)

// maxExactInt is the largest integer a JSON number carries exactly (2^53).
const maxExactInt = 1 << 53

// requireString extracts a non-empty string from args by key.
func requireString(args map[string]any, key string) (string, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return "", invalidParams(fmt.Errorf("%w: %s is required", domain.ErrValidation, key))
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidParams(fmt.Errorf("%w: %s must be a string, got %T", domain.ErrValidation, key, v))
	}
	if s == "" {
		return "", invalidParams(fmt.Errorf("%w: %s is required", domain.ErrValidation, key))
	}
	return s, nil
}

// optionalInt extracts a whole number from args. Absent or null yields nil.
func optionalInt(args map[string]any, key string) (*int64, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, invalidParams(fmt.Errorf("%w: %s must be a number, got %T", domain.ErrValidation, key, v))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, invalidParams(fmt.Errorf("%w: %s must be finite", domain.ErrValidation, key))
	}
	// Out-of-range floats have no defined int64 conversion; saturate first.
	f = math.Max(-maxExactInt, math.Min(maxExactInt, math.Round(f)))
	n := int64(f)
	return &n, nil
}

// optionalString extracts a string from args. Absent or null yields nil.
func optionalString(args map[string]any, key string) (*string, error) {
	v, exists := args[key]
	if !exists || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, invalidParams(fmt.Errorf("%w: %s must be a string, got %T", domain.ErrValidation, key, v))
	}
	return &s, nil
}
