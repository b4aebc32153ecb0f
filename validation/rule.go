package validation

import (
	"github.com/shopspring/decimal"
)

type RuleKind string

const (
	RuleKindRequired  RuleKind = "required"
	RuleKindMin       RuleKind = "min"
	RuleKindMax       RuleKind = "max"
	RuleKindRange     RuleKind = "range"
	RuleKindPattern   RuleKind = "pattern"
	RuleKindCustom    RuleKind = "custom"
	RuleKindReference RuleKind = "reference"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Blocking severities produce errors; the rest produce warnings.
func (s Severity) IsBlocking() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// Rule is a single declarative validation rule bound to one field of one
// table. Id must be stable: it is what cache entries, alert events and
// callers reference. Evaluation is side-effect free.
type Rule struct {
	Id       string           `json:"id"`
	Table    string           `json:"table"`
	Field    string           `json:"field"`
	Kind     RuleKind         `json:"kind"`
	Min      *decimal.Decimal `json:"min,omitempty"`       // min / range
	Max      *decimal.Decimal `json:"max,omitempty"`       // max / range
	Pattern  string           `json:"pattern,omitempty"`   // pattern
	Custom   string           `json:"custom,omitempty"`    // custom predicate name
	RefTable string           `json:"ref_table,omitempty"` // reference
	Severity Severity         `json:"severity"`
	Message  string           `json:"message"`
}

// EntityKind tags the entity families the engine knows about. Structural
// checks and transition graphs are resolved through maps keyed by this type,
// never by switching on raw table-name strings.
type EntityKind string

const (
	EntityOrders             EntityKind = "orders"
	EntityProductionOrders   EntityKind = "production_orders"
	EntityRolls              EntityKind = "rolls"
	EntityMachines           EntityKind = "machines"
	EntityInventoryItems     EntityKind = "inventory_items"
	EntityInventoryMovements EntityKind = "inventory_movements"
)

// KindForTable resolves a table name to its entity kind.
func KindForTable(table string) (EntityKind, bool) {
	k := EntityKind(table)
	switch k {
	case EntityOrders, EntityProductionOrders, EntityRolls,
		EntityMachines, EntityInventoryItems, EntityInventoryMovements:
		return k, true
	}
	return "", false
}
