package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
)

// Machine is read-only from this engine's perspective: its status is
// maintained by the maintenance module, but gates roll creation.
type Machine struct {
	ID        int           `gorm:"primary_key" json:"id"`
	Name      string        `gorm:"size:100;not null" json:"name" binding:"required"`
	Status    MachineStatus `gorm:"size:20;default:Active" json:"status"`
	CreatedAt time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetMachine(ctx context.Context, id int) (*Machine, error) {
	return utils.FetchModel[Machine](ctx, id)
}

func GetMachines(ctx context.Context) ([]*Machine, error) {
	db := config.GetDB()
	var results []*Machine
	if err := db.WithContext(ctx).Order("name").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
