package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

type RealtimeHandler struct {
	Log *logger.Logger
	Hub *realtime.Hub
}

func NewRealtimeHandler(log *logger.Logger, hub *realtime.Hub) *RealtimeHandler {
	return &RealtimeHandler{Log: log.With("handler", "RealtimeHandler"), Hub: hub}
}

// GET /api/conversations/:id/events
//
// Streams the conversation's events (turns, documents, email, jobs) as
// server-sent events until the client disconnects.
func (h *RealtimeHandler) ConversationEvents(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	client := h.Hub.Subscribe(realtime.ConversationChannel(id))
	h.Log.Info("event stream open", "conversation_id", id, "client_id", client.ID)
	h.Hub.Stream(c.Writer, c.Request, client)
	h.Log.Info("event stream closed", "conversation_id", id, "client_id", client.ID)
}
