package models

import (
	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/validation"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Order{}, &ProductionOrder{}, &Roll{},
		&Machine{},
		&InventoryItem{}, &InventoryMovement{},
		&validation.RuleRecord{},
	)
	utils.ErrorPanic(err)
}
