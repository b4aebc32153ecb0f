package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusWaiting      OrderStatus = "Waiting"
	OrderStatusPending      OrderStatus = "Pending"
	OrderStatusInProduction OrderStatus = "In Production"
	OrderStatusPaused       OrderStatus = "Paused"
	OrderStatusCompleted    OrderStatus = "Completed"
	OrderStatusCancelled    OrderStatus = "Cancelled"
)

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	statuses := map[string]OrderStatus{
		"Waiting":       OrderStatusWaiting,
		"Pending":       OrderStatusPending,
		"In Production": OrderStatusInProduction,
		"Paused":        OrderStatusPaused,
		"Completed":     OrderStatusCompleted,
		"Cancelled":     OrderStatusCancelled,
	}
	s, ok := statuses[value]
	if !ok {
		return "", fmt.Errorf("%q is not a valid order status", value)
	}
	return s, nil
}

type ProductionOrderStatus string

const (
	ProductionOrderStatusPending   ProductionOrderStatus = "Pending"
	ProductionOrderStatusActive    ProductionOrderStatus = "Active"
	ProductionOrderStatusPaused    ProductionOrderStatus = "Paused"
	ProductionOrderStatusCompleted ProductionOrderStatus = "Completed"
	ProductionOrderStatusCancelled ProductionOrderStatus = "Cancelled"
)

func (s ProductionOrderStatus) IsTerminal() bool {
	return s == ProductionOrderStatusCompleted || s == ProductionOrderStatusCancelled
}

func ParseProductionOrderStatus(value string) (ProductionOrderStatus, error) {
	statuses := map[string]ProductionOrderStatus{
		"Pending":   ProductionOrderStatusPending,
		"Active":    ProductionOrderStatusActive,
		"Paused":    ProductionOrderStatusPaused,
		"Completed": ProductionOrderStatusCompleted,
		"Cancelled": ProductionOrderStatusCancelled,
	}
	s, ok := statuses[value]
	if !ok {
		return "", fmt.Errorf("%q is not a valid production order status", value)
	}
	return s, nil
}

type RollStage string

const (
	RollStageFilm     RollStage = "Film"
	RollStagePrinting RollStage = "Printing"
	RollStageCutting  RollStage = "Cutting"
)

func ParseRollStage(value string) (RollStage, error) {
	stages := map[string]RollStage{
		"Film":     RollStageFilm,
		"Printing": RollStagePrinting,
		"Cutting":  RollStageCutting,
	}
	s, ok := stages[value]
	if !ok {
		return "", fmt.Errorf("%q is not a valid roll stage", value)
	}
	return s, nil
}

type MachineStatus string

const (
	MachineStatusActive      MachineStatus = "Active"
	MachineStatusMaintenance MachineStatus = "Maintenance"
	MachineStatusDown        MachineStatus = "Down"
)

type MovementType string

const (
	MovementTypeIn         MovementType = "In"
	MovementTypeOut        MovementType = "Out"
	MovementTypeAdjustment MovementType = "Adjustment"
)

func ParseMovementType(value string) (MovementType, error) {
	types := map[string]MovementType{
		"In":         MovementTypeIn,
		"Out":        MovementTypeOut,
		"Adjustment": MovementTypeAdjustment,
	}
	t, ok := types[value]
	if !ok {
		return "", fmt.Errorf("%q is not a valid movement type", value)
	}
	return t, nil
}

// PunchingType decides the production overrun applied on top of the
// required quantity. These percentages come from the production planning
// department, not from user input.
type PunchingType string

const (
	PunchingTypeNone   PunchingType = "None"
	PunchingTypeDCut   PunchingType = "D-Cut"
	PunchingTypeTShirt PunchingType = "T-Shirt"
	PunchingTypeBanana PunchingType = "Banana"
)

var punchingOverruns = map[PunchingType]decimal.Decimal{
	PunchingTypeNone:   decimal.NewFromFloat(0.03),
	PunchingTypeDCut:   decimal.NewFromFloat(0.05),
	PunchingTypeTShirt: decimal.NewFromFloat(0.08),
	PunchingTypeBanana: decimal.NewFromFloat(0.06),
}

func ParsePunchingType(value string) (PunchingType, error) {
	if value == "" {
		return PunchingTypeNone, nil
	}
	if _, ok := punchingOverruns[PunchingType(value)]; !ok {
		return "", fmt.Errorf("%q is not a valid punching type", value)
	}
	return PunchingType(value), nil
}

// OverrunPercent returns the configured overrun for the punching type as a
// fraction (0.05 = 5%).
func (p PunchingType) OverrunPercent() decimal.Decimal {
	if overrun, ok := punchingOverruns[p]; ok {
		return overrun
	}
	return punchingOverruns[PunchingTypeNone]
}
