package validation

import (
	"regexp"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

// CustomValidatorFunc is a named, side-effect-free predicate a custom rule
// can delegate to.
type CustomValidatorFunc func(value interface{}) bool

var (
	customMu         sync.RWMutex
	customValidators = map[string]CustomValidatorFunc{
		"future_date":         isFutureDate,
		"past_date":           isPastDate,
		"positive_number":     isPositiveNumber,
		"non_negative_number": isNonNegativeNumber,
		"phone":               isPhone,
	}
)

// RegisterCustom makes a predicate available to custom rules under the given
// name. Registration at runtime is supported; re-registering replaces.
func RegisterCustom(name string, fn CustomValidatorFunc) {
	if name == "" || fn == nil {
		return
	}
	customMu.Lock()
	customValidators[name] = fn
	customMu.Unlock()
}

func lookupCustom(name string) (CustomValidatorFunc, bool) {
	customMu.RLock()
	fn, ok := customValidators[name]
	customMu.RUnlock()
	return fn, ok
}

func parseTimeValue(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func isFutureDate(value interface{}) bool {
	t, ok := parseTimeValue(value)
	if !ok {
		return false
	}
	return t.After(time.Now())
}

func isPastDate(value interface{}) bool {
	t, ok := parseTimeValue(value)
	if !ok {
		return false
	}
	return t.Before(time.Now())
}

func isPositiveNumber(value interface{}) bool {
	d, err := utils.ParseDecimal(value)
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func isNonNegativeNumber(value interface{}) bool {
	d, err := utils.ParseDecimal(value)
	if err != nil {
		return false
	}
	return !d.IsNegative()
}

var phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

func isPhone(value interface{}) bool {
	s, ok := value.(string)
	if !ok {
		return false
	}
	return phonePattern.MatchString(s)
}
