package sales

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ConversationStatusActive    = "active"
	ConversationStatusCompleted = "completed"
)

// Conversation is one dialogue session. Transcript turns and recommendation
// records are separate owned tables; the counters here mirror their lengths so
// writers can detect a stale read under the row lock.
type Conversation struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Status         string  `gorm:"column:status;not null;default:'active';index" json:"status"`
	ContactEmail   *string `gorm:"column:contact_email" json:"contact_email,omitempty"`
	ContactName    *string `gorm:"column:contact_name" json:"contact_name,omitempty"`
	ExternalCallID *string `gorm:"column:external_call_id;uniqueIndex" json:"external_call_id,omitempty"`

	TurnCount int `gorm:"column:turn_count;not null;default:0" json:"turn_count"`
	RecCount  int `gorm:"column:rec_count;not null;default:0" json:"rec_count"`

	UserBudgetUSD *float64 `gorm:"column:user_budget_usd" json:"user_budget_usd,omitempty"`
	UserPlaystyle string   `gorm:"column:user_playstyle" json:"user_playstyle,omitempty"`

	TranscriptDocPath string     `gorm:"column:transcript_doc_path" json:"transcript_doc_path,omitempty"`
	FleetGuideDocPath string     `gorm:"column:fleet_guide_doc_path" json:"fleet_guide_doc_path,omitempty"`
	EmailSent         bool       `gorm:"column:email_sent;not null;default:false" json:"email_sent"`
	EmailSentAt       *time.Time `gorm:"column:email_sent_at" json:"email_sent_at,omitempty"`

	Metadata datatypes.JSON `gorm:"type:jsonb;column:metadata;not null;default:'{}'" json:"metadata,omitempty"`

	StartedAt      time.Time  `gorm:"column:started_at;not null;index" json:"started_at"`
	LastActivityAt time.Time  `gorm:"column:last_activity_at;not null;index" json:"last_activity_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at;index" json:"completed_at,omitempty"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Conversation) TableName() string { return "conversation" }

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now().UTC()
	if c.StartedAt.IsZero() {
		c.StartedAt = now
	}
	if c.LastActivityAt.Before(c.StartedAt) {
		c.LastActivityAt = c.StartedAt
	}
	if c.Status == "" {
		c.Status = ConversationStatusActive
	}
	if len(c.Metadata) == 0 {
		c.Metadata = datatypes.JSON([]byte("{}"))
	}
	return nil
}

func (c *Conversation) IsCompleted() bool {
	return c != nil && c.Status == ConversationStatusCompleted
}
