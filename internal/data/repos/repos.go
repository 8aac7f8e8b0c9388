package repos

import (
	"gorm.io/gorm"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos/catalog"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos/jobs"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos/sales"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type CatalogItemRepo = catalog.ItemRepo

type ConversationRepo = sales.ConversationRepo
type TranscriptTurnRepo = sales.TranscriptTurnRepo
type RecommendationRepo = sales.RecommendationRepo

type JobRunRepo = jobs.JobRunRepo

func NewCatalogItemRepo(db *gorm.DB, log *logger.Logger) CatalogItemRepo {
	return catalog.NewItemRepo(db, log)
}

func NewConversationRepo(db *gorm.DB, log *logger.Logger) ConversationRepo {
	return sales.NewConversationRepo(db, log)
}

func NewTranscriptTurnRepo(db *gorm.DB, log *logger.Logger) TranscriptTurnRepo {
	return sales.NewTranscriptTurnRepo(db, log)
}

func NewRecommendationRepo(db *gorm.DB, log *logger.Logger) RecommendationRepo {
	return sales.NewRecommendationRepo(db, log)
}

func NewJobRunRepo(db *gorm.DB, log *logger.Logger) JobRunRepo {
	return jobs.NewJobRunRepo(db, log)
}
