package validation

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
)

// Registry holds the validation rules per table: code-registered rules plus
// active persisted rows. Read-mostly; mutations are explicit (no ambient
// global rule maps).
type Registry struct {
	mu     sync.RWMutex
	static map[string][]Rule
}

func NewRegistry() *Registry {
	return &Registry{static: make(map[string][]Rule)}
}

// Register adds code-defined rules at runtime. They evaluate before any
// persisted rules for the same table, in registration order.
func (r *Registry) Register(rules ...Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rule := range rules {
		r.static[rule.Table] = append(r.static[rule.Table], rule)
	}
}

// Unregister removes a code-defined rule by id.
func (r *Registry) Unregister(ruleId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for table, rules := range r.static {
		kept := rules[:0]
		for _, rule := range rules {
			if rule.Id != ruleId {
				kept = append(kept, rule)
			}
		}
		r.static[table] = kept
	}
}

// GetRules returns the ordered rules for a table: registered rules first,
// then active persisted rules (Redis-cached, position order).
func (r *Registry) GetRules(ctx context.Context, table string) ([]Rule, error) {
	r.mu.RLock()
	rules := make([]Rule, len(r.static[table]))
	copy(rules, r.static[table])
	r.mu.RUnlock()

	persisted, err := loadPersistedRules(ctx, table)
	if err != nil {
		return nil, err
	}
	return append(rules, persisted...), nil
}

func loadPersistedRules(ctx context.Context, table string) ([]Rule, error) {
	db := config.GetDB()
	if db == nil {
		return nil, nil
	}

	var rules []Rule
	cacheKey := ruleCacheKey(table)
	if found, err := config.GetRedisObject(cacheKey, &rules); err == nil && found {
		return rules, nil
	}

	var records []RuleRecord
	if err := db.WithContext(ctx).
		Where("table_name = ? AND is_active = ?", table, true).
		Order("position, id").
		Find(&records).Error; err != nil {
		return nil, err
	}

	rules = make([]Rule, 0, len(records))
	for _, rec := range records {
		rule, err := rec.toRule()
		if err != nil {
			// A malformed row must not take validation down; skip it loudly.
			config.LogError(config.GetLogger(), "validation", "loadPersistedRules", "skipping malformed rule", rec.ID, err)
			continue
		}
		rules = append(rules, rule)
	}

	if err := config.SetRedisObject(cacheKey, rules, time.Hour); err != nil {
		config.LogError(config.GetLogger(), "validation", "loadPersistedRules", "failed to cache rules", table, err)
	}
	return rules, nil
}
