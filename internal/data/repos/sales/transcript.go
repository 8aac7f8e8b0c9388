package sales

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type TranscriptTurnRepo interface {
	Create(dbc dbctx.Context, turns []*types.TranscriptTurn) ([]*types.TranscriptTurn, error)
	ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*types.TranscriptTurn, error)
	DeleteByConversation(dbc dbctx.Context, conversationID uuid.UUID) error
}

type transcriptTurnRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTranscriptTurnRepo(db *gorm.DB, baseLog *logger.Logger) TranscriptTurnRepo {
	return &transcriptTurnRepo{db: db, log: baseLog.With("repo", "TranscriptTurnRepo")}
}

func (r *transcriptTurnRepo) Create(dbc dbctx.Context, turns []*types.TranscriptTurn) ([]*types.TranscriptTurn, error) {
	if len(turns) == 0 {
		return []*types.TranscriptTurn{}, nil
	}
	if err := dbc.DB(r.db).Create(&turns).Error; err != nil {
		return nil, err
	}
	return turns, nil
}

func (r *transcriptTurnRepo) ListByConversation(dbc dbctx.Context, conversationID uuid.UUID) ([]*types.TranscriptTurn, error) {
	out := []*types.TranscriptTurn{}
	if conversationID == uuid.Nil {
		return out, nil
	}
	err := dbc.DB(r.db).
		Where("conversation_id = ?", conversationID).
		Order("seq ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *transcriptTurnRepo) DeleteByConversation(dbc dbctx.Context, conversationID uuid.UUID) error {
	if conversationID == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("conversation_id = ?", conversationID).Delete(&types.TranscriptTurn{}).Error
}
