package models

import (
	"context"

	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/validation"
	"github.com/shopspring/decimal"
)

var (
	ruleRegistry     = validation.NewRegistry()
	genericValidator = validation.NewValidator(ruleRegistry)
)

// RuleRegistry exposes the engine's registry so rules can be added or
// removed at runtime.
func RuleRegistry() *validation.Registry {
	return ruleRegistry
}

// Validate runs the generic validator for a table payload.
func Validate(ctx context.Context, table string, payload map[string]interface{}, isUpdate bool) (*validation.ValidationResult, error) {
	return genericValidator.Validate(ctx, table, payload, isUpdate)
}

// validatePayload aborts with a typed ValidationError before any database
// write when the payload fails a blocking rule. Warnings are discarded here;
// callers that care fetch the full result via Validate.
func validatePayload(ctx context.Context, table string, payload map[string]interface{}, isUpdate bool) error {
	result, err := genericValidator.Validate(ctx, table, payload, isUpdate)
	if err != nil {
		return err
	}
	if !result.IsValid {
		return &utils.ValidationError{Table: table, Violations: result.Errors}
	}
	return nil
}

func dec(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func init() {
	registerBaselineRules()
}

// Baseline rules every deployment starts with. Operators extend them through
// validation.AddRule without a restart.
func registerBaselineRules() {
	ruleRegistry.Register(
		validation.Rule{
			Id: "orders.order_number.required", Table: "orders", Field: "order_number",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "order number is required",
		},
		validation.Rule{
			Id: "orders.order_number.format", Table: "orders", Field: "order_number",
			Kind: validation.RuleKindPattern, Pattern: `^[A-Z0-9/-]{3,30}$`,
			Severity: validation.SeverityHigh,
			Message:  "order number must be 3-30 chars of A-Z, digits, '-' or '/'",
		},
		validation.Rule{
			Id: "orders.accepted_quantity_kg.range", Table: "orders", Field: "accepted_quantity_kg",
			Kind: validation.RuleKindRange, Min: dec("0.01"), Max: dec("1000000"),
			Severity: validation.SeverityHigh,
			Message:  "accepted quantity must be between 0.01 and 1000000 kg",
		},
		validation.Rule{
			Id: "orders.delivery_date.future", Table: "orders", Field: "delivery_date",
			Kind: validation.RuleKindCustom, Custom: "future_date",
			Severity: validation.SeverityMedium,
			Message:  "delivery date is in the past",
		},

		validation.Rule{
			Id: "production_orders.order_id.required", Table: "production_orders", Field: "order_id",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "parent order is required",
		},
		validation.Rule{
			Id: "production_orders.order_id.exists", Table: "production_orders", Field: "order_id",
			Kind: validation.RuleKindReference, RefTable: "orders",
			Severity: validation.SeverityCritical,
			Message:  "parent order does not exist",
		},
		validation.Rule{
			Id: "production_orders.required_quantity_kg.required", Table: "production_orders", Field: "required_quantity_kg",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "required quantity is required",
		},
		validation.Rule{
			Id: "production_orders.required_quantity_kg.max", Table: "production_orders", Field: "required_quantity_kg",
			Kind: validation.RuleKindMax, Max: dec("100000"),
			Severity: validation.SeverityHigh,
			Message:  "required quantity exceeds 100000 kg",
		},

		validation.Rule{
			Id: "rolls.production_order_id.required", Table: "rolls", Field: "production_order_id",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "parent production order is required",
		},
		validation.Rule{
			Id: "rolls.machine_id.required", Table: "rolls", Field: "machine_id",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "machine is required",
		},
		validation.Rule{
			Id: "rolls.machine_id.exists", Table: "rolls", Field: "machine_id",
			Kind: validation.RuleKindReference, RefTable: "machines",
			Severity: validation.SeverityCritical,
			Message:  "machine does not exist",
		},
		validation.Rule{
			Id: "rolls.weight_kg.required", Table: "rolls", Field: "weight_kg",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "weight is required",
		},
		validation.Rule{
			Id: "rolls.weight_kg.min", Table: "rolls", Field: "weight_kg",
			Kind: validation.RuleKindMin, Min: dec("0.01"),
			Severity: validation.SeverityHigh,
			Message:  "weight must be at least 0.01 kg",
		},

		validation.Rule{
			Id: "inventory_items.name.required", Table: "inventory_items", Field: "name",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "item name is required",
		},
		validation.Rule{
			Id: "inventory_items.min_stock.non_negative", Table: "inventory_items", Field: "min_stock",
			Kind: validation.RuleKindCustom, Custom: "non_negative_number",
			Severity: validation.SeverityHigh,
			Message:  "min stock must not be negative",
		},

		validation.Rule{
			Id: "inventory_movements.inventory_item_id.required", Table: "inventory_movements", Field: "inventory_item_id",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "inventory item is required",
		},
		validation.Rule{
			Id: "inventory_movements.inventory_item_id.exists", Table: "inventory_movements", Field: "inventory_item_id",
			Kind: validation.RuleKindReference, RefTable: "inventory_items",
			Severity: validation.SeverityCritical,
			Message:  "inventory item does not exist",
		},
		validation.Rule{
			Id: "inventory_movements.quantity.required", Table: "inventory_movements", Field: "quantity",
			Kind: validation.RuleKindRequired, Severity: validation.SeverityCritical,
			Message: "quantity is required",
		},
	)
}
