package sales

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// TranscriptTurn is one appended utterance. Seq is 1-based and dense per
// conversation; rows are never updated.
type TranscriptTurn struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_transcript_turn_conv_seq,priority:1" json:"conversation_id"`
	Seq            int       `gorm:"column:seq;not null;uniqueIndex:idx_transcript_turn_conv_seq,priority:2" json:"seq"`
	Role           string    `gorm:"column:role;not null" json:"role"`
	Content        string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"not null;index" json:"timestamp"`
}

func (TranscriptTurn) TableName() string { return "transcript_turn" }

func (t *TranscriptTurn) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
