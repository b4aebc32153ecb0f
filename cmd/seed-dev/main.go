package main

import (
	"context"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"github.com/shopspring/decimal"
)

// Seeds a development database with machines and inventory items so the
// engine can be exercised locally.
func main() {
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	db := config.GetDB()

	machines := []models.Machine{
		{Name: "Extruder 1", Status: models.MachineStatusActive},
		{Name: "Extruder 2", Status: models.MachineStatusActive},
		{Name: "Printer 1", Status: models.MachineStatusMaintenance},
	}
	for i := range machines {
		if err := db.WithContext(ctx).
			Where("name = ?", machines[i].Name).
			FirstOrCreate(&machines[i]).Error; err != nil {
			fmt.Fprintf(os.Stderr, "seed machine %s: %v\n", machines[i].Name, err)
			os.Exit(1)
		}
	}

	items := []models.NewInventoryItem{
		{Name: "LDPE Granulate", Unit: "kg", MinStock: decimal.NewFromInt(500), MaxStock: decimal.NewFromInt(10000)},
		{Name: "Cyan Ink", Unit: "l", MinStock: decimal.NewFromInt(20), MaxStock: decimal.NewFromInt(200)},
	}
	for _, item := range items {
		if _, err := models.CreateInventoryItem(ctx, &item); err != nil {
			// Re-running the seeder hits the unique name check; skip.
			fmt.Printf("skip item %s: %v\n", item.Name, err)
		}
	}

	fmt.Println("seed complete")
}
