package utils

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// NormalizeNotFound maps gorm's not-found sentinel to ErrorRecordNotFound
// and passes every other error through unchanged, so transient failures on
// locked reads (lock wait timeout, deadlock, broken connection) keep their
// driver error and stay visible to IsRetryableError.
func NormalizeNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorRecordNotFound
	}
	return err
}

// Invariant names a transactional guarantee enforced by the repository layer.
type Invariant string

const (
	// InvariantQuantityCeiling: sum of roll weights per production order must
	// stay within final_quantity_kg * (1 + tolerance).
	InvariantQuantityCeiling Invariant = "QUANTITY_CEILING"
	// InvariantStockFloor: inventory stock never goes negative.
	InvariantStockFloor Invariant = "STOCK_FLOOR"
	// InvariantTerminalParent: no production order under a completed/cancelled order.
	InvariantTerminalParent Invariant = "TERMINAL_PARENT"
	// InvariantMachineInactive: rolls are only produced on active machines.
	InvariantMachineInactive Invariant = "MACHINE_INACTIVE"
	// InvariantIllegalTransition: status change not present in the entity's transition graph.
	InvariantIllegalTransition Invariant = "ILLEGAL_TRANSITION"
)

// InvariantViolationError is returned when a mutating operation would break a
// named invariant. Requested/Available carry the computed quantities so the
// caller can render "you requested X, only Y remains".
type InvariantViolationError struct {
	Invariant Invariant
	Entity    string
	Message   string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant %s violated on %s: %s", e.Invariant, e.Entity, e.Message)
}

// FieldViolation is a single failed validation rule.
type FieldViolation struct {
	RuleId  string `json:"rule_id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a payload fails one or more blocking rules.
// Nothing has been written when this is returned.
type ValidationError struct {
	Table      string
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Field+": "+v.Message)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Table, strings.Join(msgs, "; "))
}

// IsInvariantViolation reports whether err is a violation of the given invariant.
func IsInvariantViolation(err error, inv Invariant) bool {
	var ive *InvariantViolationError
	return errors.As(err, &ive) && ive.Invariant == inv
}

// IsRetryableError reports whether the whole operation can safely be retried:
// transient infrastructure failures only (lock wait timeout, deadlock victim,
// broken connection). Aborted transactions leave no partial writes, so a
// retry re-runs the operation from scratch.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1205: // ER_LOCK_WAIT_TIMEOUT
			return true
		case 1213: // ER_LOCK_DEADLOCK
			return true
		}
	}
	return false
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
