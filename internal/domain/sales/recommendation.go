package sales

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxRecommendations caps the size of a conversation's fleet.
const MaxRecommendations = 5

// RecommendationRecord snapshots a catalog item at the time it was committed to
// a conversation's fleet. ItemID is nil for placeholder records whose name could
// not be resolved against the catalog.
type RecommendationRecord struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"conversation_id"`
	ItemID         *uuid.UUID `gorm:"type:uuid;column:item_id;index" json:"ship_id"`
	DisplayName    string     `gorm:"column:display_name;not null" json:"ship_name"`
	Manufacturer   string     `gorm:"column:manufacturer" json:"manufacturer"`
	Role           string     `gorm:"column:role" json:"role"`
	Slug           string     `gorm:"column:slug" json:"slug"`
	Priority       int        `gorm:"column:priority;not null" json:"priority"`
	Reason         string     `gorm:"column:reason" json:"recommendation_reason"`
	CreatedAt      time.Time  `gorm:"not null;index" json:"created_at"`
}

func (RecommendationRecord) TableName() string { return "recommendation_record" }

func (r *RecommendationRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *RecommendationRecord) IsPlaceholder() bool {
	return r == nil || r.ItemID == nil || *r.ItemID == uuid.Nil
}
