package models

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/validation"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// rollWeightTolerance is the fixed allowance above a production order's
// final quantity (3%).
var rollWeightTolerance = decimal.NewFromFloat(0.03)

// RollCreateMode names the two weight-ceiling policies the plant runs.
type RollCreateMode string

const (
	// RollModeStrict rejects any roll that would push the total past
	// final_quantity_kg * (1 + tolerance).
	RollModeStrict RollCreateMode = "strict"
	// RollModeAllowFinalOverrun accepts one last roll that crosses the
	// remaining quantity, as long as the ceiling was not already reached.
	// Used by the shop-floor terminal entrypoint where the produced roll
	// already physically exists.
	RollModeAllowFinalOverrun RollCreateMode = "allow-final-overrun"
)

type Roll struct {
	ID                int             `gorm:"primary_key" json:"id"`
	RollNumber        int             `gorm:"not null;uniqueIndex:idx_rolls_po_number" json:"roll_number"`
	RollCode          string          `gorm:"size:30;not null" json:"roll_code"`
	ProductionOrderId int             `gorm:"not null;uniqueIndex:idx_rolls_po_number" json:"production_order_id" binding:"required"`
	MachineId         int             `gorm:"index;not null" json:"machine_id" binding:"required"`
	WeightKg          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"weight_kg"`
	Stage             RollStage       `gorm:"size:20;default:Film" json:"stage"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewRoll struct {
	ProductionOrderId int             `json:"production_order_id" binding:"required"`
	MachineId         int             `json:"machine_id" binding:"required"`
	WeightKg          decimal.Decimal `json:"weight_kg"`
	// Mode selects the weight-ceiling policy. Empty means the deployment
	// default (ALLOW_FINAL_ROLL_OVERRUN flag, off = strict).
	Mode RollCreateMode `json:"mode"`
}

func (input *NewRoll) payload() map[string]interface{} {
	return map[string]interface{}{
		"production_order_id": input.ProductionOrderId,
		"machine_id":          input.MachineId,
		"weight_kg":           input.WeightKg,
	}
}

func resolveRollCreateMode(mode RollCreateMode) (RollCreateMode, error) {
	switch mode {
	case RollModeStrict, RollModeAllowFinalOverrun:
		return mode, nil
	case "":
		if config.AllowFinalRollOverrun() {
			return RollModeAllowFinalOverrun, nil
		}
		return RollModeStrict, nil
	default:
		return "", fmt.Errorf("%q is not a valid roll create mode", mode)
	}
}

// CreateRoll inserts a roll under its production order's row lock. The
// machine gate, the weight-ceiling check and the sequence number all read
// the same locked view, so concurrent creates against one production order
// serialize and the committed weight total never silently passes the
// ceiling.
func CreateRoll(ctx context.Context, input *NewRoll) (*Roll, error) {
	if err := validatePayload(ctx, "rolls", input.payload(), false); err != nil {
		return nil, err
	}
	mode, err := resolveRollCreateMode(input.Mode)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	var productionOrder ProductionOrder
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&productionOrder, input.ProductionOrderId).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}

	var machine Machine
	if err := tx.First(&machine, input.MachineId).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}
	if machine.Status != MachineStatusActive {
		return nil, &utils.InvariantViolationError{
			Invariant: utils.InvariantMachineInactive,
			Entity:    "rolls",
			Message:   fmt.Sprintf("machine %s is %s; rolls require an active machine", machine.Name, machine.Status),
		}
	}

	var currentTotal decimal.Decimal
	if err := tx.Model(&Roll{}).
		Where("production_order_id = ?", productionOrder.ID).
		Select("COALESCE(SUM(weight_kg), 0)").
		Scan(&currentTotal).Error; err != nil {
		return nil, err
	}

	ceiling := productionOrder.FinalQuantityKg.
		Mul(decimal.NewFromInt(1).Add(rollWeightTolerance))
	remaining := ceiling.Sub(currentTotal)

	switch mode {
	case RollModeStrict:
		if currentTotal.Add(input.WeightKg).GreaterThan(ceiling) {
			return nil, &utils.InvariantViolationError{
				Invariant: utils.InvariantQuantityCeiling,
				Entity:    "rolls",
				Message:   fmt.Sprintf("adding %s kg exceeds the %s kg ceiling for %s; %s kg remain", input.WeightKg, ceiling, productionOrder.Number, remaining),
				Requested: input.WeightKg,
				Available: remaining,
			}
		}
	case RollModeAllowFinalOverrun:
		// The final roll may cross the remaining quantity, but once the
		// ceiling is reached no further roll is accepted.
		if !remaining.IsPositive() {
			return nil, &utils.InvariantViolationError{
				Invariant: utils.InvariantQuantityCeiling,
				Entity:    "rolls",
				Message:   fmt.Sprintf("%s already reached its %s kg ceiling", productionOrder.Number, ceiling),
				Requested: input.WeightKg,
				Available: decimal.Zero,
			}
		}
	}

	var maxNumber int
	if err := tx.Model(&Roll{}).
		Where("production_order_id = ?", productionOrder.ID).
		Select("COALESCE(MAX(roll_number), 0)").
		Scan(&maxNumber).Error; err != nil {
		return nil, err
	}

	roll := Roll{
		RollNumber:        maxNumber + 1,
		RollCode:          fmt.Sprintf("%s/R%02d", productionOrder.Number, maxNumber+1),
		ProductionOrderId: productionOrder.ID,
		MachineId:         machine.ID,
		WeightKg:          input.WeightKg,
		Stage:             RollStageFilm,
	}
	if err := tx.Create(&roll).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &roll, nil
}

func GetRoll(ctx context.Context, id int) (*Roll, error) {
	return utils.FetchModel[Roll](ctx, id)
}

func GetRolls(ctx context.Context, productionOrderId *int) ([]*Roll, error) {
	db := config.GetDB()
	var results []*Roll

	dbCtx := db.WithContext(ctx)
	if productionOrderId != nil {
		dbCtx = dbCtx.Where("production_order_id = ?", *productionOrderId)
	}
	if err := dbCtx.Order("roll_number").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateRollStage advances a roll through the forward-only stage machine.
func UpdateRollStage(ctx context.Context, id int, newStage string) (*Roll, error) {
	target, err := ParseRollStage(newStage)
	if err != nil {
		return nil, &utils.InvariantViolationError{
			Invariant: utils.InvariantIllegalTransition,
			Entity:    "rolls",
			Message:   err.Error(),
		}
	}

	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	defer tx.Rollback()

	var roll Roll
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&roll, id).Error; err != nil {
		return nil, utils.NormalizeNotFound(err)
	}

	result := validation.CanTransition(validation.EntityRolls, string(roll.Stage), string(target))
	if !result.IsValid {
		return nil, &utils.InvariantViolationError{
			Invariant: utils.InvariantIllegalTransition,
			Entity:    "rolls",
			Message:   result.Errors[0],
		}
	}

	roll.Stage = target
	if err := tx.Model(&roll).Update("stage", target).Error; err != nil {
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &roll, nil
}
