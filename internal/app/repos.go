package app

import (
	"gorm.io/gorm"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type Repos struct {
	CatalogItems    repos.CatalogItemRepo
	Conversations   repos.ConversationRepo
	Transcript      repos.TranscriptTurnRepo
	Recommendations repos.RecommendationRepo
	JobRuns         repos.JobRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		CatalogItems:    repos.NewCatalogItemRepo(db, log),
		Conversations:   repos.NewConversationRepo(db, log),
		Transcript:      repos.NewTranscriptTurnRepo(db, log),
		Recommendations: repos.NewRecommendationRepo(db, log),
		JobRuns:         repos.NewJobRunRepo(db, log),
	}
}
