package sales

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type ConversationRepo interface {
	Create(dbc dbctx.Context, conv *types.Conversation) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error)
	GetByExternalCallID(dbc dbctx.Context, callID string) (*types.Conversation, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	SoftDelete(dbc dbctx.Context, id uuid.UUID) error
}

type conversationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewConversationRepo(db *gorm.DB, baseLog *logger.Logger) ConversationRepo {
	return &conversationRepo{db: db, log: baseLog.With("repo", "ConversationRepo")}
}

func (r *conversationRepo) Create(dbc dbctx.Context, conv *types.Conversation) error {
	if conv == nil {
		return nil
	}
	return dbc.DB(r.db).Create(conv).Error
}

// GetByID returns (nil, nil) when the conversation does not exist.
func (r *conversationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Conversation
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *conversationRepo) GetByExternalCallID(dbc dbctx.Context, callID string) (*types.Conversation, error) {
	if callID == "" {
		return nil, nil
	}
	var out types.Conversation
	if err := dbc.DB(r.db).Where("external_call_id = ?", callID).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

// LockByID takes a row lock for the rest of the caller's transaction.
// Returns (nil, nil) when the row does not exist.
func (r *conversationRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Conversation, error) {
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires a transaction")
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var out types.Conversation
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	if out.ID == uuid.Nil {
		return nil, nil
	}
	return &out, nil
}

func (r *conversationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return dbc.DB(r.db).
		Model(&types.Conversation{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *conversationRepo) SoftDelete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.Conversation{}).Error
}
