package models

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProductionOrder struct {
	ID                 int                   `gorm:"primary_key" json:"id"`
	Number             string                `gorm:"size:20;uniqueIndex;not null" json:"number"`
	OrderId            int                   `gorm:"index;not null" json:"order_id" binding:"required"`
	PunchingType       PunchingType          `gorm:"size:20;default:None" json:"punching_type"`
	RequiredQuantityKg decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"required_quantity_kg"`
	FinalQuantityKg    decimal.Decimal       `gorm:"type:decimal(20,4);not null" json:"final_quantity_kg"`
	Status             ProductionOrderStatus `gorm:"size:20;default:Pending" json:"status"`
	Rolls              []Roll                `gorm:"foreignKey:ProductionOrderId" json:"rolls"`
	CreatedAt          time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewProductionOrder struct {
	OrderId            int             `json:"order_id" binding:"required"`
	PunchingType       string          `json:"punching_type"`
	RequiredQuantityKg decimal.Decimal `json:"required_quantity_kg"`
	WidthCm            *decimal.Decimal `json:"width_cm"`
	LeftFacingCm       *decimal.Decimal `json:"left_facing_cm"`
	RightFacingCm      *decimal.Decimal `json:"right_facing_cm"`
}

func (input *NewProductionOrder) payload() map[string]interface{} {
	p := map[string]interface{}{
		"order_id":             input.OrderId,
		"punching_type":        input.PunchingType,
		"required_quantity_kg": input.RequiredQuantityKg,
	}
	if input.WidthCm != nil {
		p["width_cm"] = *input.WidthCm
	}
	if input.LeftFacingCm != nil {
		p["left_facing_cm"] = *input.LeftFacingCm
	}
	if input.RightFacingCm != nil {
		p["right_facing_cm"] = *input.RightFacingCm
	}
	return p
}

const productionOrderNumberPrefix = "PO-"

// nextProductionOrderNumber reads the highest assigned number inside the
// caller's transaction. The unique index on `number` backstops the rare race
// between transactions working under different order locks; that failure is
// a duplicate-key error the caller may retry.
func nextProductionOrderNumber(tx *gorm.DB) (string, error) {
	var last ProductionOrder
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("id DESC").Limit(1).Find(&last).Error
	if err != nil {
		return "", err
	}

	seq := 0
	if last.Number != "" {
		raw := strings.TrimPrefix(last.Number, productionOrderNumberPrefix)
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", fmt.Errorf("malformed production order number %q", last.Number)
		}
		seq = n
	}
	return fmt.Sprintf("%s%05d", productionOrderNumberPrefix, seq+1), nil
}

// CreateProductionOrder inserts a production order under its parent order's
// row lock: the terminal-parent check, the sibling quantity aggregate and
// the number generation all read the same locked view.
func CreateProductionOrder(ctx context.Context, input *NewProductionOrder) (*ProductionOrder, error) {
	if err := validatePayload(ctx, "production_orders", input.payload(), false); err != nil {
		return nil, err
	}
	punchingType, err := ParsePunchingType(input.PunchingType)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	var order Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, input.OrderId).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}

	if order.Status.IsTerminal() {
		return nil, &utils.InvariantViolationError{
			Invariant: utils.InvariantTerminalParent,
			Entity:    "production_orders",
			Message:   fmt.Sprintf("order %s is %s; no production orders can be added", order.OrderNumber, order.Status),
		}
	}

	number, err := nextProductionOrderNumber(tx)
	if err != nil {
		return nil, err
	}

	overrun := punchingType.OverrunPercent()
	finalQuantity := input.RequiredQuantityKg.
		Mul(decimal.NewFromInt(1).Add(overrun)).
		Round(4)

	// Soft ceiling: the final quantities of all siblings should stay within
	// the order's accepted total. Business rule only; logged, not enforced.
	if order.AcceptedQuantityKg.IsPositive() {
		var siblingTotal decimal.Decimal
		if err := tx.Model(&ProductionOrder{}).
			Where("order_id = ? AND status <> ?", order.ID, ProductionOrderStatusCancelled).
			Select("COALESCE(SUM(final_quantity_kg), 0)").
			Scan(&siblingTotal).Error; err != nil {
			return nil, err
		}
		if siblingTotal.Add(finalQuantity).GreaterThan(order.AcceptedQuantityKg) {
			config.LogWarn(config.GetLogger(), "models", "CreateProductionOrder",
				"planned quantity exceeds the order's accepted total",
				map[string]string{
					"order":    order.OrderNumber,
					"planned":  siblingTotal.Add(finalQuantity).String(),
					"accepted": order.AcceptedQuantityKg.String(),
				},
				"accepted quantity exceeded")
		}
	}

	productionOrder := ProductionOrder{
		Number:             number,
		OrderId:            order.ID,
		PunchingType:       punchingType,
		RequiredQuantityKg: input.RequiredQuantityKg,
		FinalQuantityKg:    finalQuantity,
		Status:             ProductionOrderStatusPending,
	}
	if err := tx.Create(&productionOrder).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &productionOrder, nil
}

func GetProductionOrder(ctx context.Context, id int) (*ProductionOrder, error) {
	return utils.FetchModel[ProductionOrder](ctx, id, "Rolls")
}

func GetProductionOrders(ctx context.Context, orderId *int) ([]*ProductionOrder, error) {
	db := config.GetDB()
	var results []*ProductionOrder

	dbCtx := db.WithContext(ctx)
	if orderId != nil {
		dbCtx = dbCtx.Where("order_id = ?", *orderId)
	}
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateProductionOrderStatus applies a status change and resolves the
// parent order cascades (activation, auto-completion). The parent order is
// locked before the production order: every write path takes locks in
// order -> production order sequence.
func UpdateProductionOrderStatus(ctx context.Context, id int, newStatus string) (*ProductionOrder, error) {
	target, err := ParseProductionOrderStatus(newStatus)
	if err != nil {
		return nil, &utils.InvariantViolationError{
			Invariant: utils.InvariantIllegalTransition,
			Entity:    "production_orders",
			Message:   err.Error(),
		}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	var ref ProductionOrder
	if err := tx.First(&ref, id).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}

	var order Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, ref.OrderId).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}

	var productionOrder ProductionOrder
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&productionOrder, id).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}

	result := validation.CanTransition(validation.EntityProductionOrders, string(productionOrder.Status), string(target))
	if !result.IsValid {
		return nil, &utils.InvariantViolationError{
			Invariant: utils.InvariantIllegalTransition,
			Entity:    "production_orders",
			Message:   result.Errors[0],
		}
	}

	productionOrder.Status = target
	if err := tx.Model(&productionOrder).Update("status", target).Error; err != nil {
		return nil, err
	}

	switch target {
	case ProductionOrderStatusActive:
		if err := ResolveOrderActivation(tx, &order); err != nil {
			return nil, err
		}
	case ProductionOrderStatusCompleted:
		if err := ResolveOrderCompletion(tx, &order); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &productionOrder, nil
}
