package db

import (
	"gorm.io/gorm"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Catalog (read-only to the sales flow)
		&types.CatalogItem{},

		// Conversations
		&types.Conversation{},
		&types.TranscriptTurn{},
		&types.RecommendationRecord{},

		// Background jobs
		&types.JobRun{},
	)
}
