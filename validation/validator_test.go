package validation_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/alerting"
	"bitbucket.org/mmdatafocus/factory_backend/validation"
	"github.com/shopspring/decimal"
)

func dec(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func newTestValidator(rules ...validation.Rule) *validation.Validator {
	registry := validation.NewRegistry()
	registry.Register(rules...)
	return validation.NewValidator(registry)
}

func TestRequiredRule(t *testing.T) {
	v := newTestValidator(validation.Rule{
		Id: "orders.order_number.required", Table: "orders", Field: "order_number",
		Kind: validation.RuleKindRequired, Severity: validation.SeverityHigh,
	})

	result, err := v.Validate(context.Background(), "orders", map[string]interface{}{}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("missing required field must fail")
	}

	result, err = v.Validate(context.Background(), "orders", map[string]interface{}{"order_number": ""}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("empty string counts as absent")
	}

	result, err = v.Validate(context.Background(), "orders", map[string]interface{}{"order_number": "ORD-1001"}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("present value must pass: %v", result.Errors)
	}
}

func TestRequiredRuleSkipsOmittedFieldsOnUpdate(t *testing.T) {
	v := newTestValidator(validation.Rule{
		Id: "orders.order_number.required", Table: "orders", Field: "order_number",
		Kind: validation.RuleKindRequired, Severity: validation.SeverityHigh,
	})

	result, err := v.Validate(context.Background(), "orders", map[string]interface{}{"customer_name": "ACME"}, true)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("partial update omitting the field must pass: %v", result.Errors)
	}
}

func TestRangeRules(t *testing.T) {
	v := newTestValidator(validation.Rule{
		Id: "rolls.weight_kg.range", Table: "rolls", Field: "weight_kg",
		Kind: validation.RuleKindRange, Min: dec("0.01"), Max: dec("500"),
		Severity: validation.SeverityHigh,
	})

	cases := []struct {
		name    string
		payload map[string]interface{}
		valid   bool
	}{
		{"within range", map[string]interface{}{"weight_kg": "120.5"}, true},
		{"below min", map[string]interface{}{"weight_kg": "0"}, false},
		{"above max", map[string]interface{}{"weight_kg": 501}, false},
		{"absent is not a range violation", map[string]interface{}{}, true},
		{"unparseable fails the rule", map[string]interface{}{"weight_kg": "heavy"}, false},
	}
	for _, tc := range cases {
		result, err := v.Validate(context.Background(), "rolls", tc.payload, false)
		if err != nil {
			t.Fatalf("%s: Validate: %v", tc.name, err)
		}
		if result.IsValid != tc.valid {
			t.Fatalf("%s: expected valid=%v, got %+v", tc.name, tc.valid, result)
		}
	}
}

func TestPatternRule(t *testing.T) {
	v := newTestValidator(validation.Rule{
		Id: "orders.order_number.format", Table: "orders", Field: "order_number",
		Kind: validation.RuleKindPattern, Pattern: `^ORD-[0-9]{4}$`,
		Severity: validation.SeverityHigh,
	})

	result, _ := v.Validate(context.Background(), "orders", map[string]interface{}{"order_number": "ORD-1001"}, false)
	if !result.IsValid {
		t.Fatalf("matching value must pass: %v", result.Errors)
	}
	result, _ = v.Validate(context.Background(), "orders", map[string]interface{}{"order_number": "1001"}, false)
	if result.IsValid {
		t.Fatal("non-matching value must fail")
	}
}

func TestSeveritySplitsErrorsAndWarnings(t *testing.T) {
	v := newTestValidator(
		validation.Rule{
			Id: "orders.order_number.required", Table: "orders", Field: "order_number",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
		},
		validation.Rule{
			Id: "orders.customer_name.required", Table: "orders", Field: "customer_name",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityLow,
		},
	)

	result, err := v.Validate(context.Background(), "orders", map[string]interface{}{}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("critical violation must invalidate")
	}
	if len(result.Errors) != 1 || result.Errors[0].RuleId != "orders.order_number.required" {
		t.Fatalf("expected the critical rule in errors, got %+v", result.Errors)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].RuleId != "orders.customer_name.required" {
		t.Fatalf("expected the low-severity rule in warnings, got %+v", result.Warnings)
	}
}

func TestWarningsAloneDoNotInvalidate(t *testing.T) {
	v := newTestValidator(validation.Rule{
		Id: "orders.customer_name.required", Table: "orders", Field: "customer_name",
		Kind: validation.RuleKindRequired, Severity: validation.SeverityMedium,
	})

	result, err := v.Validate(context.Background(), "orders", map[string]interface{}{}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid {
		t.Fatal("warnings must not block")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", result.Warnings)
	}
}

func TestCustomRuleDelegatesToPredicate(t *testing.T) {
	v := newTestValidator(validation.Rule{
		Id: "orders.delivery_date.future", Table: "orders", Field: "delivery_date",
		Kind: validation.RuleKindCustom, Custom: "future_date",
		Severity: validation.SeverityHigh,
	})

	future := time.Now().Add(30 * 24 * time.Hour)
	result, _ := v.Validate(context.Background(), "orders", map[string]interface{}{"delivery_date": future}, false)
	if !result.IsValid {
		t.Fatalf("future date must pass: %v", result.Errors)
	}

	past := time.Now().Add(-24 * time.Hour)
	result, _ = v.Validate(context.Background(), "orders", map[string]interface{}{"delivery_date": past}, false)
	if result.IsValid {
		t.Fatal("past date must fail future_date")
	}
}

func TestUnknownCustomValidatorFailsOpenByDefault(t *testing.T) {
	v := newTestValidator(validation.Rule{
		Id: "orders.order_number.mystery", Table: "orders", Field: "order_number",
		Kind: validation.RuleKindCustom, Custom: "no_such_predicate",
		Severity: validation.SeverityHigh,
	})

	result, err := v.Validate(context.Background(), "orders", map[string]interface{}{"order_number": "ORD-1"}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("unregistered predicate passes by default: %v", result.Errors)
	}
}

func TestUnknownCustomValidatorFailsClosedWhenStrict(t *testing.T) {
	t.Setenv("STRICT_CUSTOM_VALIDATORS", "true")

	v := newTestValidator(validation.Rule{
		Id: "orders.order_number.mystery", Table: "orders", Field: "order_number",
		Kind: validation.RuleKindCustom, Custom: "no_such_predicate",
		Severity: validation.SeverityHigh,
	})

	result, err := v.Validate(context.Background(), "orders", map[string]interface{}{"order_number": "ORD-1"}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("strict mode must reject unregistered predicates")
	}
}

func TestRegisteredCustomValidator(t *testing.T) {
	validation.RegisterCustom("is_even", func(value interface{}) bool {
		n, ok := value.(int)
		return ok && n%2 == 0
	})

	v := newTestValidator(validation.Rule{
		Id: "rolls.machine_id.even", Table: "rolls", Field: "machine_id",
		Kind: validation.RuleKindCustom, Custom: "is_even",
		Severity: validation.SeverityHigh,
	})

	result, _ := v.Validate(context.Background(), "rolls", map[string]interface{}{"machine_id": 2}, false)
	if !result.IsValid {
		t.Fatalf("even value must pass: %v", result.Errors)
	}
	result, _ = v.Validate(context.Background(), "rolls", map[string]interface{}{"machine_id": 3}, false)
	if result.IsValid {
		t.Fatal("odd value must fail")
	}
}

func TestStructuralChecks(t *testing.T) {
	v := newTestValidator()

	result, err := v.Validate(context.Background(), "inventory_items", map[string]interface{}{
		"name":      "Granulate",
		"min_stock": "100",
		"max_stock": "50",
	}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("min_stock >= max_stock must fail the structural check")
	}

	result, err = v.Validate(context.Background(), "production_orders", map[string]interface{}{
		"required_quantity_kg": "100",
		"width_cm":             "40",
		"left_facing_cm":       "25",
		"right_facing_cm":      "20",
	}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("facings wider than the film must fail the structural check")
	}

	result, err = v.Validate(context.Background(), "orders", map[string]interface{}{
		"order_number":  "ORD-1001",
		"delivery_date": time.Now().Add(48 * time.Hour),
	}, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("short delivery window is a warning, not an error: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("short delivery window must produce a warning")
	}
}

func TestUnknownTableIsAnError(t *testing.T) {
	v := newTestValidator()
	if _, err := v.Validate(context.Background(), "widgets", map[string]interface{}{}, false); err == nil {
		t.Fatal("unknown table must return an error")
	}
}

func TestValidationIsIdempotent(t *testing.T) {
	v := newTestValidator(
		validation.Rule{
			Id: "rolls.weight_kg.required", Table: "rolls", Field: "weight_kg",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
		},
		validation.Rule{
			Id: "rolls.weight_kg.min", Table: "rolls", Field: "weight_kg",
			Kind: validation.RuleKindMin, Min: dec("0.01"),
			Severity: validation.SeverityHigh,
		},
	)

	payload := map[string]interface{}{"weight_kg": "-3"}
	first, err := v.Validate(context.Background(), "rolls", payload, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	second, err := v.Validate(context.Background(), "rolls", payload, false)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-validating the same payload must be identical:\n%+v\n%+v", first, second)
	}
}

func TestUnregisterRemovesRule(t *testing.T) {
	registry := validation.NewRegistry()
	registry.Register(validation.Rule{
		Id: "orders.order_number.required", Table: "orders", Field: "order_number",
		Kind: validation.RuleKindRequired, Severity: validation.SeverityHigh,
	})
	v := validation.NewValidator(registry)

	result, _ := v.Validate(context.Background(), "orders", map[string]interface{}{}, false)
	if result.IsValid {
		t.Fatal("rule should apply before removal")
	}

	registry.Unregister("orders.order_number.required")
	result, _ = v.Validate(context.Background(), "orders", map[string]interface{}{}, false)
	if !result.IsValid {
		t.Fatalf("rule removal must take effect immediately: %v", result.Errors)
	}
}

type failingSink struct{}

func (failingSink) Raise(context.Context, alerting.Event) error {
	return errors.New("alert transport down")
}

func TestSinkFailureDoesNotAffectValidation(t *testing.T) {
	alerting.SetSink(failingSink{})
	t.Cleanup(func() { alerting.SetSink(alerting.LogSink{}) })

	v := newTestValidator(validation.Rule{
		Id: "orders.order_number.required", Table: "orders", Field: "order_number",
		Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
		Message: "order number is required",
	})

	result, err := v.Validate(context.Background(), "orders", map[string]interface{}{}, false)
	if err != nil {
		t.Fatalf("a broken alert sink must not fail validation: %v", err)
	}
	if result.IsValid {
		t.Fatal("the critical rule must still fail")
	}
	if len(result.Errors) != 1 || result.Errors[0].RuleId != "orders.order_number.required" {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
}
