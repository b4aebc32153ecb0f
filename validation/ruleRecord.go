package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
)

// RuleRecord is the persisted form of a validation rule. Operators add and
// deactivate rows at runtime; the registry reads them through a Redis cache
// so changes take effect across instances without a restart.
type RuleRecord struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Table        string    `gorm:"column:table_name;size:100;index;not null" json:"table_name" binding:"required"`
	FieldName    string    `gorm:"size:100;not null" json:"field_name" binding:"required"`
	RuleType     string    `gorm:"size:20;not null" json:"rule_type" binding:"required"`
	RuleValue    string    `gorm:"size:255" json:"rule_value"`
	Severity     string    `gorm:"size:20;default:high" json:"severity"`
	ErrorMessage string    `gorm:"size:255" json:"error_message"`
	Position     int       `gorm:"default:0" json:"position"`
	IsActive     *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (RuleRecord) TableName() string {
	return "validation_rules"
}

// toRule decodes RuleValue according to RuleType:
// min/max hold a single bound, range holds "low,high", pattern holds a
// regex, custom holds a predicate name, reference holds the referenced
// table name.
func (rec *RuleRecord) toRule() (Rule, error) {
	rule := Rule{
		Id:       fmt.Sprintf("%s.%s.%s#%d", rec.Table, rec.FieldName, rec.RuleType, rec.ID),
		Table:    rec.Table,
		Field:    rec.FieldName,
		Kind:     RuleKind(rec.RuleType),
		Severity: Severity(rec.Severity),
		Message:  rec.ErrorMessage,
	}
	if rule.Severity == "" {
		rule.Severity = SeverityHigh
	}

	switch rule.Kind {
	case RuleKindRequired:
	case RuleKindMin:
		bound, err := decimal.NewFromString(strings.TrimSpace(rec.RuleValue))
		if err != nil {
			return rule, fmt.Errorf("rule %d: bad min bound %q", rec.ID, rec.RuleValue)
		}
		rule.Min = &bound
	case RuleKindMax:
		bound, err := decimal.NewFromString(strings.TrimSpace(rec.RuleValue))
		if err != nil {
			return rule, fmt.Errorf("rule %d: bad max bound %q", rec.ID, rec.RuleValue)
		}
		rule.Max = &bound
	case RuleKindRange:
		parts := strings.SplitN(rec.RuleValue, ",", 2)
		if len(parts) != 2 {
			return rule, fmt.Errorf("rule %d: bad range %q", rec.ID, rec.RuleValue)
		}
		low, err := decimal.NewFromString(strings.TrimSpace(parts[0]))
		if err != nil {
			return rule, fmt.Errorf("rule %d: bad range low %q", rec.ID, parts[0])
		}
		high, err := decimal.NewFromString(strings.TrimSpace(parts[1]))
		if err != nil {
			return rule, fmt.Errorf("rule %d: bad range high %q", rec.ID, parts[1])
		}
		rule.Min = &low
		rule.Max = &high
	case RuleKindPattern:
		rule.Pattern = rec.RuleValue
	case RuleKindCustom:
		rule.Custom = strings.TrimSpace(rec.RuleValue)
	case RuleKindReference:
		rule.RefTable = strings.TrimSpace(rec.RuleValue)
	default:
		return rule, fmt.Errorf("rule %d: unknown rule type %q", rec.ID, rec.RuleType)
	}
	return rule, nil
}

// AddRule persists a rule row and invalidates the table's rule cache.
func AddRule(ctx context.Context, input *RuleRecord) (*RuleRecord, error) {
	if err := utils.ValidateBinding(input); err != nil {
		return nil, err
	}
	if _, ok := KindForTable(input.Table); !ok {
		return nil, errors.New("unknown table: " + input.Table)
	}
	if _, err := input.toRule(); err != nil {
		return nil, err
	}
	if input.IsActive == nil {
		input.IsActive = utils.NewTrue()
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(input).Error; err != nil {
		return nil, err
	}
	invalidateRuleCache(input.Table)
	return input, nil
}

// RemoveRule deletes a rule row and invalidates the table's rule cache.
func RemoveRule(ctx context.Context, id int) (*RuleRecord, error) {
	record, err := utils.FetchModel[RuleRecord](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(record).Error; err != nil {
		return nil, err
	}
	invalidateRuleCache(record.Table)
	return record, nil
}

// SetRuleActive toggles a rule without deleting its row.
func SetRuleActive(ctx context.Context, id int, active bool) (*RuleRecord, error) {
	record, err := utils.FetchModel[RuleRecord](ctx, id)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Model(record).
		Update("is_active", active).Error; err != nil {
		return nil, err
	}
	if active {
		record.IsActive = utils.NewTrue()
	} else {
		record.IsActive = utils.NewFalse()
	}
	invalidateRuleCache(record.Table)
	return record, nil
}

func invalidateRuleCache(table string) {
	if err := config.RemoveRedisKey(ruleCacheKey(table)); err != nil {
		config.LogError(config.GetLogger(), "validation", "invalidateRuleCache", "failed to invalidate rule cache", table, err)
	}
}

func ruleCacheKey(table string) string {
	return "validation:rules:" + table
}
