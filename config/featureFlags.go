package config

import (
	"os"
	"strings"
)

// StrictCustomValidators makes the generic validator reject a rule whose
// named custom predicate is not registered. The historical behavior is
// fail-open: an unknown predicate passes (the gap is logged either way).
//
// Set via env:
// - STRICT_CUSTOM_VALIDATORS=true
func StrictCustomValidators() bool {
	return boolFromEnv("STRICT_CUSTOM_VALIDATORS")
}

// AllowFinalRollOverrun selects the default roll-creation policy when the
// caller does not pick one explicitly: the last roll of a production order
// may cross the remaining quantity instead of being capped at
// final_quantity_kg * (1 + tolerance).
//
// Set via env:
// - ALLOW_FINAL_ROLL_OVERRUN=true
func AllowFinalRollOverrun() bool {
	return boolFromEnv("ALLOW_FINAL_ROLL_OVERRUN")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
