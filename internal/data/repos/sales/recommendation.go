package sales

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type RecommendationRepo interface {
	Create(dbc dbctx.Context, recs []*types.RecommendationRecord) ([]*types.RecommendationRecord, error)
	ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*types.RecommendationRecord, error)
	DeleteByConversation(dbc dbctx.Context, conversationID uuid.UUID) (int64, error)
}

type recommendationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRecommendationRepo(db *gorm.DB, baseLog *logger.Logger) RecommendationRepo {
	return &recommendationRepo{db: db, log: baseLog.With("repo", "RecommendationRepo")}
}

func (r *recommendationRepo) Create(dbc dbctx.Context, recs []*types.RecommendationRecord) ([]*types.RecommendationRecord, error) {
	if len(recs) == 0 {
		return []*types.RecommendationRecord{}, nil
	}
	if err := dbc.DB(r.db).Create(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

func (r *recommendationRepo) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*types.RecommendationRecord, error) {
	out := []*types.RecommendationRecord{}
	if conversationID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("conversation_id = ?", conversationID).
		Order("priority ASC").
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *recommendationRepo) DeleteByConversation(dbc dbctx.Context, conversationID uuid.UUID) (int64, error) {
	if conversationID == uuid.Nil {
		return 0, nil
	}
	res := dbc.DB(r.db).Where("conversation_id = ?", conversationID).Delete(&types.RecommendationRecord{})
	return res.RowsAffected, res.Error
}
