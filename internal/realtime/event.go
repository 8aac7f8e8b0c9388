package realtime

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventConversationTurn        EventType = "ConversationTurn"
	EventConversationCompleted   EventType = "ConversationCompleted"
	EventRecommendationsReplaced EventType = "RecommendationsReplaced"
	EventDocumentsReady          EventType = "DocumentsReady"
	EventEmailSent               EventType = "EmailSent"

	EventJobCreated  EventType = "JobCreated"
	EventJobProgress EventType = "JobProgress"
	EventJobFailed   EventType = "JobFailed"
	EventJobDone     EventType = "JobDone"
)

// Event is the unit carried by the bus and streamed to subscribers of its
// channel.
type Event struct {
	Channel string         `json:"channel"`
	Type    EventType      `json:"event"`
	Data    map[string]any `json:"data,omitempty"`
	At      time.Time      `json:"at"`
}

// ConversationChannel is the channel every event about one conversation is
// published on.
func ConversationChannel(id uuid.UUID) string {
	return "conversation:" + id.String()
}

func NewConversationEvent(id uuid.UUID, typ EventType, data map[string]any) Event {
	return Event{Channel: ConversationChannel(id), Type: typ, Data: data, At: time.Now().UTC()}
}
