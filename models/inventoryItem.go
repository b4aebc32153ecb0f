package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InventoryItem caches the stock level derived from its movement ledger.
// CurrentStock is only ever written inside the same transaction as the
// movement that changes it, and must always equal the ledger replay result.
type InventoryItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	Name         string          `gorm:"size:100;uniqueIndex;not null" json:"name" binding:"required"`
	Unit         string          `gorm:"size:20;default:kg" json:"unit"`
	CurrentStock decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_stock"`
	MinStock     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"min_stock"`
	MaxStock     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"max_stock"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewInventoryItem struct {
	Name     string          `json:"name" binding:"required"`
	Unit     string          `json:"unit"`
	MinStock decimal.Decimal `json:"min_stock"`
	MaxStock decimal.Decimal `json:"max_stock"`
}

func (input *NewInventoryItem) payload() map[string]interface{} {
	return map[string]interface{}{
		"name":      input.Name,
		"unit":      input.Unit,
		"min_stock": input.MinStock,
		"max_stock": input.MaxStock,
	}
}

// CreateInventoryItem creates an item with zero stock. Opening stock is
// posted as an In movement so the ledger stays the source of truth.
func CreateInventoryItem(ctx context.Context, input *NewInventoryItem) (*InventoryItem, error) {
	if err := validatePayload(ctx, "inventory_items", input.payload(), false); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[InventoryItem](ctx, "name", input.Name, 0); err != nil {
		return nil, err
	}

	item := InventoryItem{
		Name:     input.Name,
		Unit:     input.Unit,
		MinStock: input.MinStock,
		MaxStock: input.MaxStock,
	}
	if item.Unit == "" {
		item.Unit = "kg"
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func GetInventoryItem(ctx context.Context, id int) (*InventoryItem, error) {
	return utils.FetchModel[InventoryItem](ctx, id)
}

func GetInventoryItems(ctx context.Context) ([]*InventoryItem, error) {
	db := config.GetDB()
	var results []*InventoryItem
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ReplayInventoryLedger recomputes an item's stock from its movement ledger
// in posting order. Used by the rebuild workflow and the consistency tests.
func ReplayInventoryLedger(tx *gorm.DB, itemId int) (decimal.Decimal, error) {
	var movements []InventoryMovement
	if err := tx.Where("inventory_item_id = ?", itemId).
		Order("id").Find(&movements).Error; err != nil {
		return decimal.Zero, err
	}

	stock := decimal.Zero
	for _, movement := range movements {
		switch movement.MovementType {
		case MovementTypeIn:
			stock = stock.Add(movement.Quantity)
		case MovementTypeOut:
			stock = stock.Sub(movement.Quantity)
		case MovementTypeAdjustment:
			stock = movement.Quantity
		}
	}
	return stock, nil
}
