package models

import (
	"gorm.io/gorm"
)

// MigrateTable migrates the staging schema only. The legacy database is never migrated.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&StagingItem{},
		&BatchConfig{},
	)
}
