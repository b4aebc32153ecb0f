package workflow

import (
	"fmt"

	"gorm.io/gorm"
)

// AcquireRebuildLock serializes the inventory rebuild against itself across
// instances using MySQL advisory locks.
// GET_LOCK is connection-scoped, so this must run on the same transaction
// that does the rebuild.
func AcquireRebuildLock(tx *gorm.DB) error {
	var ok int
	if err := tx.Raw("SELECT GET_LOCK(?, 30)", rebuildLockName).Scan(&ok).Error; err != nil {
		return err
	}
	if ok != 1 {
		return fmt.Errorf("could not acquire inventory rebuild lock")
	}
	return nil
}

func ReleaseRebuildLock(tx *gorm.DB) {
	var ok int
	_ = tx.Raw("SELECT RELEASE_LOCK(?)", rebuildLockName).Scan(&ok).Error
}

const rebuildLockName = "inventory:rebuild"
