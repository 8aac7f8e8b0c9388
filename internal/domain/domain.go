package domain

import (
	"github.com/Kcheesee/StarCitiSalesAgent/internal/domain/catalog"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/domain/jobs"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/domain/sales"
)

const (
	ConversationStatusActive    = sales.ConversationStatusActive
	ConversationStatusCompleted = sales.ConversationStatusCompleted

	RoleUser      = sales.RoleUser
	RoleAssistant = sales.RoleAssistant

	MaxRecommendations = sales.MaxRecommendations

	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
	JobStatusCanceled  = jobs.StatusCanceled
)

type (
	Conversation         = sales.Conversation
	TranscriptTurn       = sales.TranscriptTurn
	RecommendationRecord = sales.RecommendationRecord

	CatalogItem = catalog.Item
	Embedding   = catalog.Embedding
	FilterSet   = catalog.FilterSet

	JobRun = jobs.JobRun
)
