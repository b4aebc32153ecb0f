package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Order struct {
	ID                 int               `gorm:"primary_key" json:"id"`
	OrderNumber        string            `gorm:"size:30;uniqueIndex;not null" json:"order_number" binding:"required"`
	CustomerName       string            `gorm:"size:100" json:"customer_name"`
	Status             OrderStatus       `gorm:"size:20;default:Waiting" json:"status"`
	AcceptedQuantityKg decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"accepted_quantity_kg"`
	DeliveryDate       *time.Time        `json:"delivery_date"`
	ProductionOrders   []ProductionOrder `gorm:"foreignKey:OrderId" json:"production_orders"`
	CreatedAt          time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrder struct {
	OrderNumber        string          `json:"order_number" binding:"required"`
	CustomerName       string          `json:"customer_name"`
	AcceptedQuantityKg decimal.Decimal `json:"accepted_quantity_kg"`
	DeliveryDate       *time.Time      `json:"delivery_date"`
}

func (input *NewOrder) payload() map[string]interface{} {
	p := map[string]interface{}{
		"order_number":         input.OrderNumber,
		"customer_name":        input.CustomerName,
		"accepted_quantity_kg": input.AcceptedQuantityKg,
	}
	if input.DeliveryDate != nil {
		p["delivery_date"] = *input.DeliveryDate
	}
	return p
}

func CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	if err := validatePayload(ctx, "orders", input.payload(), false); err != nil {
		return nil, err
	}
	if err := utils.ValidateUnique[Order](ctx, "order_number", input.OrderNumber, 0); err != nil {
		return nil, err
	}

	order := Order{
		OrderNumber:        input.OrderNumber,
		CustomerName:       input.CustomerName,
		Status:             OrderStatusWaiting,
		AcceptedQuantityKg: input.AcceptedQuantityKg,
		DeliveryDate:       input.DeliveryDate,
	}

	db := config.GetDB()
	// db action
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	return utils.FetchModel[Order](ctx, id, "ProductionOrders", "ProductionOrders.Rolls")
}

func GetOrders(ctx context.Context, status *string) ([]*Order, error) {
	db := config.GetDB()
	var results []*Order

	dbCtx := db.WithContext(ctx)
	if status != nil && *status != "" {
		dbCtx = dbCtx.Where("status = ?", *status)
	}
	if err := dbCtx.Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteOrder removes an order together with its production orders and
// their rolls, all in one transaction.
func DeleteOrder(ctx context.Context, id int) (*Order, error) {
	db := config.GetDB()

	var order *Order
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order = &Order{}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(order, id).Error; err != nil {
			return utils.NormalizeNotFound(err)
		}

		if err := tx.Where("production_order_id IN (?)",
			tx.Model(&ProductionOrder{}).Select("id").Where("order_id = ?", id)).
			Delete(&Roll{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&ProductionOrder{}).Error; err != nil {
			return err
		}
		return tx.Delete(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus moves an order through its transition graph. The row is
// locked so the read status and the written status belong to the same view.
func UpdateOrderStatus(ctx context.Context, id int, newStatus string) (*Order, error) {
	target, err := ParseOrderStatus(newStatus)
	if err != nil {
		return nil, &utils.InvariantViolationError{
			Invariant: utils.InvariantIllegalTransition,
			Entity:    "orders",
			Message:   err.Error(),
		}
	}

	db := config.GetDB()
	var order *Order
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order = &Order{}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(order, id).Error; err != nil {
			return utils.NormalizeNotFound(err)
		}

		result := validation.CanTransition(validation.EntityOrders, string(order.Status), string(target))
		if !result.IsValid {
			return &utils.InvariantViolationError{
				Invariant: utils.InvariantIllegalTransition,
				Entity:    "orders",
				Message:   result.Errors[0],
			}
		}

		order.Status = target
		return tx.Model(order).Update("status", target).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
