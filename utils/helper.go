package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newBindingValidator()

func newBindingValidator() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}

// ValidateBinding runs go-playground struct validation against an input
// struct's `binding` tags. Failures come back as a ValidationError so
// callers see one error shape for binding and rule failures alike.
func ValidateBinding(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := ProcessValidationErrors(verrs)
	violations := make([]FieldViolation, 0, len(fields))
	for field, tag := range fields {
		violations = append(violations, FieldViolation{
			Field:   field,
			Message: "failed '" + tag + "' binding",
		})
	}
	return &ValidationError{Table: "input", Violations: violations}
}

func ProcessValidationErrors(verrs validator.ValidationErrors) map[string]string {

	errorResponse := make(map[string]string)

	for _, ve := range verrs {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// ParseDecimal parses a decimal from any of the value shapes a payload map
// can carry (string, float64, int, decimal.Decimal).
func ParseDecimal(value interface{}) (decimal.Decimal, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, nil
	case string:
		return decimal.NewFromString(v)
	case float64:
		return decimal.NewFromFloat(v), nil
	case float32:
		return decimal.NewFromFloat32(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	default:
		return decimal.Zero, fmt.Errorf("cannot parse %T as decimal", value)
	}
}

// ResourceLock obtains a short-lived cross-instance lock for a named
// resource. Used by maintenance workflows (ledger rebuild) that must not run
// twice concurrently; regular postings rely on row locks instead.
func ResourceLock(ctx context.Context, resource string, lockType string, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", resource, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, resource)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for resource", resource, err)
		return nil, errors.New("could not obtain lock for " + resource)
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for resource", resource, err)
		return nil, err
	}
	return lock, nil
}
