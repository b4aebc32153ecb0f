package validation

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/alerting"
	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// ValidationResult is the outcome of validating one payload. Errors block
// the operation; warnings do not. Validating the same payload against the
// same rules twice yields the same result.
type ValidationResult struct {
	IsValid  bool                   `json:"is_valid"`
	Errors   []utils.FieldViolation `json:"errors"`
	Warnings []utils.FieldViolation `json:"warnings"`
}

// structuralCheckFunc runs the per-table checks that are not expressible as
// generic rules (cross-field consistency, business thresholds).
type structuralCheckFunc func(payload map[string]interface{}, isUpdate bool) (errors []utils.FieldViolation, warnings []utils.FieldViolation)

// Validator applies a registry's rules plus the table's structural checks.
type Validator struct {
	registry *Registry
	checks   map[EntityKind]structuralCheckFunc
}

func NewValidator(registry *Registry) *Validator {
	return &Validator{
		registry: registry,
		checks: map[EntityKind]structuralCheckFunc{
			EntityOrders:             checkOrderStructure,
			EntityProductionOrders:   checkProductionOrderStructure,
			EntityRolls:              checkRollStructure,
			EntityInventoryItems:     checkInventoryItemStructure,
			EntityInventoryMovements: checkInventoryMovementStructure,
		},
	}
}

// Validate evaluates every enabled rule for the table against the payload,
// then the table's structural checks. Critical findings are forwarded to the
// alerting sink (best-effort).
func (v *Validator) Validate(ctx context.Context, table string, payload map[string]interface{}, isUpdate bool) (*ValidationResult, error) {
	kind, ok := KindForTable(table)
	if !ok {
		return nil, fmt.Errorf("unknown table: %s", table)
	}

	rules, err := v.registry.GetRules(ctx, table)
	if err != nil {
		return nil, err
	}

	result := &ValidationResult{
		Errors:   []utils.FieldViolation{},
		Warnings: []utils.FieldViolation{},
	}
	var critical []utils.FieldViolation

	for _, rule := range rules {
		violated, msg := evaluateRule(ctx, rule, payload, isUpdate)
		if !violated {
			continue
		}
		violation := utils.FieldViolation{RuleId: rule.Id, Field: rule.Field, Message: msg}
		if rule.Severity.IsBlocking() {
			result.Errors = append(result.Errors, violation)
			if rule.Severity == SeverityCritical {
				critical = append(critical, violation)
			}
		} else {
			result.Warnings = append(result.Warnings, violation)
		}
	}

	if check, ok := v.checks[kind]; ok {
		errs, warns := check(payload, isUpdate)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warns...)
	}

	result.IsValid = len(result.Errors) == 0
	if len(critical) > 0 {
		alerting.Raise(ctx, string(SeverityCritical), table, critical)
	}
	return result, nil
}

// hasValue reports presence: nil and empty strings count as absent.
func hasValue(payload map[string]interface{}, field string) (interface{}, bool) {
	value, ok := payload[field]
	if !ok || value == nil {
		return nil, false
	}
	if s, isStr := value.(string); isStr && s == "" {
		return nil, false
	}
	return value, true
}

// evaluateRule returns whether the rule is violated, plus a message.
// Absence is only a violation for required rules; the range family skips
// absent values so that "required" stays the single source of absence
// failures.
func evaluateRule(ctx context.Context, rule Rule, payload map[string]interface{}, isUpdate bool) (bool, string) {
	value, present := hasValue(payload, rule.Field)

	switch rule.Kind {
	case RuleKindRequired:
		if present {
			return false, ""
		}
		if isUpdate {
			// Partial updates omit untouched fields.
			if _, provided := payload[rule.Field]; !provided {
				return false, ""
			}
		}
		return true, messageOr(rule, rule.Field+" is required")

	case RuleKindMin, RuleKindMax, RuleKindRange:
		if !present {
			return false, ""
		}
		num, err := utils.ParseDecimal(value)
		if err != nil {
			return true, messageOr(rule, rule.Field+" is not a number")
		}
		if rule.Min != nil && num.LessThan(*rule.Min) {
			return true, messageOr(rule, fmt.Sprintf("%s must be at least %s", rule.Field, rule.Min))
		}
		if rule.Max != nil && num.GreaterThan(*rule.Max) {
			return true, messageOr(rule, fmt.Sprintf("%s must be at most %s", rule.Field, rule.Max))
		}
		return false, ""

	case RuleKindPattern:
		if !present {
			return false, ""
		}
		re, err := compiledPattern(rule.Pattern)
		if err != nil {
			return true, messageOr(rule, "invalid pattern for "+rule.Field)
		}
		if !re.MatchString(fmt.Sprint(value)) {
			return true, messageOr(rule, rule.Field+" has an invalid format")
		}
		return false, ""

	case RuleKindCustom:
		if !present {
			return false, ""
		}
		fn, ok := lookupCustom(rule.Custom)
		if !ok {
			// Unregistered predicate. Historical behavior is fail-open;
			// STRICT_CUSTOM_VALIDATORS flips it. Logged either way so the
			// registry gap is visible.
			config.LogWarn(config.GetLogger(), "validation", "evaluateRule", "custom validator not registered", rule.Custom, "unknown custom validator")
			if config.StrictCustomValidators() {
				return true, messageOr(rule, "unknown validator "+rule.Custom+" for "+rule.Field)
			}
			return false, ""
		}
		if !fn(value) {
			return true, messageOr(rule, rule.Field+" failed "+rule.Custom)
		}
		return false, ""

	case RuleKindReference:
		if !present {
			return false, ""
		}
		exists, err := referenceExists(ctx, rule.RefTable, value)
		if err != nil {
			return true, messageOr(rule, "could not verify "+rule.Field+" against "+rule.RefTable)
		}
		if !exists {
			return true, messageOr(rule, fmt.Sprintf("%s references a missing row in %s", rule.Field, rule.RefTable))
		}
		return false, ""
	}

	return false, ""
}

func messageOr(rule Rule, fallback string) string {
	if rule.Message != "" {
		return rule.Message
	}
	return fallback
}

func referenceExists(ctx context.Context, table string, id interface{}) (bool, error) {
	db := config.GetDB()
	if db == nil {
		return false, fmt.Errorf("database not connected")
	}
	var count int64
	if err := db.WithContext(ctx).Table(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var (
	patternMu    sync.RWMutex
	patternCache = map[string]*regexp.Regexp{}
)

func compiledPattern(pattern string) (*regexp.Regexp, error) {
	patternMu.RLock()
	re, ok := patternCache[pattern]
	patternMu.RUnlock()
	if ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternMu.Lock()
	patternCache[pattern] = re
	patternMu.Unlock()
	return re, nil
}

/* structural checks (not expressible as generic rules) */

const shortDeliveryWindowDays = 7

func checkOrderStructure(payload map[string]interface{}, isUpdate bool) ([]utils.FieldViolation, []utils.FieldViolation) {
	var warnings []utils.FieldViolation
	if value, ok := hasValue(payload, "delivery_date"); ok {
		if due, parsed := parseTimeValue(value); parsed {
			if window := time.Until(due); window > 0 && window < shortDeliveryWindowDays*24*time.Hour {
				warnings = append(warnings, utils.FieldViolation{
					RuleId:  "orders.delivery_date.window",
					Field:   "delivery_date",
					Message: fmt.Sprintf("delivery window is shorter than %d days", shortDeliveryWindowDays),
				})
			}
		}
	}
	return nil, warnings
}

func checkProductionOrderStructure(payload map[string]interface{}, isUpdate bool) ([]utils.FieldViolation, []utils.FieldViolation) {
	var errs []utils.FieldViolation
	if value, ok := hasValue(payload, "required_quantity_kg"); ok {
		if qty, err := utils.ParseDecimal(value); err == nil && !qty.IsPositive() {
			errs = append(errs, utils.FieldViolation{
				RuleId:  "production_orders.required_quantity_kg.positive",
				Field:   "required_quantity_kg",
				Message: "required quantity must be greater than zero",
			})
		}
	}
	// Bag face widths must fit inside the film width.
	width, hasWidth := hasValue(payload, "width_cm")
	left, hasLeft := hasValue(payload, "left_facing_cm")
	right, hasRight := hasValue(payload, "right_facing_cm")
	if hasWidth && (hasLeft || hasRight) {
		w, errW := utils.ParseDecimal(width)
		l, r := decimal.Zero, decimal.Zero
		var errL, errR error
		if hasLeft {
			l, errL = utils.ParseDecimal(left)
		}
		if hasRight {
			r, errR = utils.ParseDecimal(right)
		}
		if errW == nil && errL == nil && errR == nil && l.Add(r).GreaterThan(w) {
			errs = append(errs, utils.FieldViolation{
				RuleId:  "production_orders.facings.width",
				Field:   "width_cm",
				Message: "left and right facings exceed the total width",
			})
		}
	}
	return errs, nil
}

func checkRollStructure(payload map[string]interface{}, isUpdate bool) ([]utils.FieldViolation, []utils.FieldViolation) {
	var errs []utils.FieldViolation
	if value, ok := hasValue(payload, "weight_kg"); ok {
		if weight, err := utils.ParseDecimal(value); err != nil || !weight.IsPositive() {
			errs = append(errs, utils.FieldViolation{
				RuleId:  "rolls.weight_kg.positive",
				Field:   "weight_kg",
				Message: "weight must be greater than zero",
			})
		}
	}
	return errs, nil
}

func checkInventoryItemStructure(payload map[string]interface{}, isUpdate bool) ([]utils.FieldViolation, []utils.FieldViolation) {
	var errs []utils.FieldViolation
	minValue, hasMin := hasValue(payload, "min_stock")
	maxValue, hasMax := hasValue(payload, "max_stock")
	if hasMin && hasMax {
		minStock, errMin := utils.ParseDecimal(minValue)
		maxStock, errMax := utils.ParseDecimal(maxValue)
		if errMin == nil && errMax == nil && minStock.GreaterThanOrEqual(maxStock) {
			errs = append(errs, utils.FieldViolation{
				RuleId:  "inventory_items.min_stock.below_max",
				Field:   "min_stock",
				Message: "min_stock must be less than max_stock",
			})
		}
	}
	return errs, nil
}

func checkInventoryMovementStructure(payload map[string]interface{}, isUpdate bool) ([]utils.FieldViolation, []utils.FieldViolation) {
	var errs []utils.FieldViolation
	if value, ok := hasValue(payload, "quantity"); ok {
		if qty, err := utils.ParseDecimal(value); err != nil || qty.IsNegative() {
			errs = append(errs, utils.FieldViolation{
				RuleId:  "inventory_movements.quantity.non_negative",
				Field:   "quantity",
				Message: "quantity must not be negative",
			})
		}
	}
	return errs, nil
}
