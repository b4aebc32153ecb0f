package models_test

import (
	"sync"
	"testing"

	"bitbucket.org/mmdatafocus/factory_backend/config"
	"bitbucket.org/mmdatafocus/factory_backend/models"
	"bitbucket.org/mmdatafocus/factory_backend/utils"
	"bitbucket.org/mmdatafocus/factory_backend/workflow"
	"github.com/shopspring/decimal"
)

func TestConcurrentOutMovementsNeverDriveStockNegative(t *testing.T) {
	ctx := setupFactoryTest(t)

	item := fixtureInventoryItem(t, ctx, "50")

	// 30 + 25 = 55 against a stock of 50: exactly one may commit.
	quantities := []string{"30", "25"}
	results := make([]error, len(quantities))
	var wg sync.WaitGroup
	for i, q := range quantities {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			_, err := models.PostInventoryMovement(ctx, &models.NewInventoryMovement{
				InventoryItemId: item.ID,
				MovementType:    "Out",
				Quantity:        decimal.RequireFromString(q),
			})
			results[i] = err
		}(i, q)
	}
	wg.Wait()

	var successes, floorFailures int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		if utils.IsInvariantViolation(err, utils.InvariantStockFloor) {
			floorFailures++
			continue
		}
		t.Fatalf("unexpected error kind: %v", err)
	}
	if successes != 1 || floorFailures != 1 {
		t.Fatalf("expected exactly one success and one stock-floor rejection, got %d/%d (%v)", successes, floorFailures, results)
	}

	stored, err := models.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem: %v", err)
	}
	if stored.CurrentStock.IsNegative() {
		t.Fatalf("stock went negative: %s", stored.CurrentStock)
	}
}

func TestLedgerReplayMatchesCachedStock(t *testing.T) {
	ctx := setupFactoryTest(t)

	item := fixtureInventoryItem(t, ctx, "100")

	steps := []models.NewInventoryMovement{
		{InventoryItemId: item.ID, MovementType: "Out", Quantity: decimal.RequireFromString("40")},
		{InventoryItemId: item.ID, MovementType: "In", Quantity: decimal.RequireFromString("15.5")},
		{InventoryItemId: item.ID, MovementType: "Adjustment", Quantity: decimal.RequireFromString("70")},
		{InventoryItemId: item.ID, MovementType: "Out", Quantity: decimal.RequireFromString("12.25")},
	}
	for i := range steps {
		if _, err := models.PostInventoryMovement(ctx, &steps[i]); err != nil {
			t.Fatalf("movement %d: %v", i, err)
		}
	}

	stored, err := models.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem: %v", err)
	}
	want := decimal.RequireFromString("57.75") // 70 - 12.25
	if !stored.CurrentStock.Equal(want) {
		t.Fatalf("cached stock %s, want %s", stored.CurrentStock, want)
	}

	db := config.GetDB()
	replayed, err := models.ReplayInventoryLedger(db.WithContext(ctx), item.ID)
	if err != nil {
		t.Fatalf("ReplayInventoryLedger: %v", err)
	}
	if !replayed.Equal(stored.CurrentStock) {
		t.Fatalf("ledger replay %s disagrees with cached stock %s", replayed, stored.CurrentStock)
	}
}

func TestNegativeAdjustmentIsRejected(t *testing.T) {
	ctx := setupFactoryTest(t)

	item := fixtureInventoryItem(t, ctx, "10")

	_, err := models.PostInventoryMovement(ctx, &models.NewInventoryMovement{
		InventoryItemId: item.ID,
		MovementType:    "Adjustment",
		Quantity:        decimal.RequireFromString("-5"),
	})
	if err == nil {
		t.Fatalf("negative adjustment must be rejected")
	}
	stored, err := models.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem: %v", err)
	}
	if !stored.CurrentStock.Equal(decimal.RequireFromString("10")) {
		t.Fatalf("rejected adjustment must not move stock, got %s", stored.CurrentStock)
	}
}

func TestInventoryRebuildRepairsDriftedStock(t *testing.T) {
	ctx := setupFactoryTest(t)

	item := fixtureInventoryItem(t, ctx, "80")

	// Corrupt the cached column behind the engine's back.
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&models.InventoryItem{}).
		Where("id = ?", item.ID).
		Update("current_stock", decimal.RequireFromString("999")).Error; err != nil {
		t.Fatalf("corrupt stock: %v", err)
	}

	report, err := workflow.RebuildInventoryStock(ctx, config.GetLogger(), true)
	if err != nil {
		t.Fatalf("RebuildInventoryStock: %v", err)
	}
	if report.ItemsDrifted < 1 || report.ItemsFixed < 1 {
		t.Fatalf("rebuild did not detect or repair the drift: %+v", report)
	}

	stored, err := models.GetInventoryItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetInventoryItem: %v", err)
	}
	if !stored.CurrentStock.Equal(decimal.RequireFromString("80")) {
		t.Fatalf("stock after repair %s, want 80", stored.CurrentStock)
	}
}
