package models

import (
	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/validation"
	"gorm.io/gorm"
)

// Cascade resolvers run inside the caller's transaction, after the caller
// has locked the order row. They are separate from the write paths so each
// side can be tested on its own.

// ResolveOrderActivation moves a Waiting/Pending order to In Production
// when one of its production orders starts.
func ResolveOrderActivation(tx *gorm.DB, order *Order) error {
	if order.Status != OrderStatusWaiting && order.Status != OrderStatusPending {
		return nil
	}
	order.Status = OrderStatusInProduction
	return tx.Model(order).Update("status", OrderStatusInProduction).Error
}

// ResolveOrderCompletion completes the order once every sibling production
// order has reached a terminal state and at least one completed. Cancelled
// siblings do not block completion.
func ResolveOrderCompletion(tx *gorm.DB, order *Order) error {
	var openCount int64
	if err := tx.Model(&ProductionOrder{}).
		Where("order_id = ? AND status NOT IN (?)", order.ID,
			[]ProductionOrderStatus{ProductionOrderStatusCompleted, ProductionOrderStatusCancelled}).
		Count(&openCount).Error; err != nil {
		return err
	}
	if openCount > 0 {
		return nil
	}

	var completedCount int64
	if err := tx.Model(&ProductionOrder{}).
		Where("order_id = ? AND status = ?", order.ID, ProductionOrderStatusCompleted).
		Count(&completedCount).Error; err != nil {
		return err
	}
	if completedCount == 0 {
		return nil
	}

	result := validation.CanTransition(validation.EntityOrders, string(order.Status), string(OrderStatusCompleted))
	if !result.IsValid {
		// The order sits in a state (e.g. Paused) the graph does not allow
		// to complete from; leave it for the operator.
		config.LogWarn(config.GetLogger(), "models", "ResolveOrderCompletion",
			"all production orders completed but order cannot auto-complete",
			map[string]interface{}{"order_id": order.ID, "status": order.Status},
			result.Errors[0])
		return nil
	}

	order.Status = OrderStatusCompleted
	return tx.Model(order).Update("status", OrderStatusCompleted).Error
}
