package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// InventoryMovement is an append-only ledger entry. Movements are never
// updated or deleted; corrections are posted as new Adjustment movements.
type InventoryMovement struct {
	ID              int             `gorm:"primary_key" json:"id"`
	InventoryItemId int             `gorm:"index;not null" json:"inventory_item_id" binding:"required"`
	MovementType    MovementType    `gorm:"size:20;not null" json:"movement_type"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Reference       string          `gorm:"size:100" json:"reference"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

type NewInventoryMovement struct {
	InventoryItemId int             `json:"inventory_item_id" binding:"required"`
	MovementType    string          `json:"movement_type" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	Reference       string          `json:"reference"`
}

func (input *NewInventoryMovement) payload() map[string]interface{} {
	return map[string]interface{}{
		"inventory_item_id": input.InventoryItemId,
		"movement_type":     input.MovementType,
		"quantity":          input.Quantity,
		"reference":         input.Reference,
	}
}

// PostInventoryMovement appends a ledger entry and updates the item's cached
// stock in one transaction, under the item's row lock. Out movements that
// would drive the stock negative are rejected; Adjustment sets the absolute
// level.
func PostInventoryMovement(ctx context.Context, input *NewInventoryMovement) (*InventoryMovement, error) {
	if err := validatePayload(ctx, "inventory_movements", input.payload(), false); err != nil {
		return nil, err
	}
	movementType, err := ParseMovementType(input.MovementType)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateResourceId[InventoryItem](ctx, input.InventoryItemId); err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	var item InventoryItem
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&item, input.InventoryItemId).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}

	var newStock decimal.Decimal
	switch movementType {
	case MovementTypeIn:
		newStock = item.CurrentStock.Add(input.Quantity)
	case MovementTypeOut:
		newStock = item.CurrentStock.Sub(input.Quantity)
		if newStock.IsNegative() {
			return nil, &utils.InvariantViolationError{
				Invariant: utils.InvariantStockFloor,
				Entity:    "inventory_movements",
				Message:   fmt.Sprintf("taking %s %s from %s would leave %s; only %s available", input.Quantity, item.Unit, item.Name, newStock, item.CurrentStock),
				Requested: input.Quantity,
				Available: item.CurrentStock,
			}
		}
	case MovementTypeAdjustment:
		if input.Quantity.IsNegative() {
			return nil, &utils.InvariantViolationError{
				Invariant: utils.InvariantStockFloor,
				Entity:    "inventory_movements",
				Message:   fmt.Sprintf("cannot adjust %s to negative stock %s", item.Name, input.Quantity),
				Requested: input.Quantity,
				Available: item.CurrentStock,
			}
		}
		newStock = input.Quantity
	}

	movement := InventoryMovement{
		InventoryItemId: item.ID,
		MovementType:    movementType,
		Quantity:        input.Quantity,
		Reference:       input.Reference,
	}
	if err := tx.Create(&movement).Error; err != nil {
		return nil, err
	}
	if err := tx.Model(&item).Update("current_stock", newStock).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if newStock.LessThan(item.MinStock) {
		config.LogWarn(config.GetLogger(), "models", "PostInventoryMovement",
			"stock fell below the minimum threshold",
			map[string]string{"item": item.Name, "stock": newStock.String(), "min": item.MinStock.String()},
			"low stock")
	}

	return &movement, nil
}

func GetInventoryMovements(ctx context.Context, itemId int) ([]*InventoryMovement, error) {
	db := config.GetDB()
	var results []*InventoryMovement
	if err := db.WithContext(ctx).
		Where("inventory_item_id = ?", itemId).
		Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
