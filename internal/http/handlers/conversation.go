package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/http/response"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/documents"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

type ConversationHandler struct {
	conversations services.ConversationService
	jobs          services.JobService
}

func NewConversationHandler(conversations services.ConversationService, jobs services.JobService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, jobs: jobs}
}

type startConversationRequest struct {
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
}

type sendMessageRequest struct {
	Message              string `json:"message" binding:"required,max=5000"`
	ForceRecommendations bool   `json:"force_recommendations"`
}

type completeConversationRequest struct {
	Email string `json:"email" binding:"required"`
	Name  string `json:"name"`
}

type emailRequest struct {
	Resend bool `json:"resend"`
}

// POST /api/conversations
func (h *ConversationHandler) Start(c *gin.Context) {
	var req startConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	snap, err := h.conversations.Start(c.Request.Context(), services.StartConversationInput{
		UserName:  req.UserName,
		UserEmail: req.UserEmail,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, snap)
}

// GET /api/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	snap, err := h.conversations.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// POST /api/conversations/:id/messages
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.conversations.SendMessage(c.Request.Context(), id, req.Message, req.ForceRecommendations)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}

// GET /api/conversations/:id/recommendations
func (h *ConversationHandler) Recommendations(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	recs, err := h.conversations.Recommendations(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"conversation_id":   id,
		"recommended_ships": recs,
		"total":             len(recs),
	})
}

// POST /api/conversations/:id/complete
func (h *ConversationHandler) Complete(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req completeConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	snap, err := h.conversations.Complete(c.Request.Context(), services.CompleteConversationInput{
		ConversationID: id,
		Email:          req.Email,
		Name:           req.Name,
	})
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, snap)
}

// POST /api/conversations/:id/documents
func (h *ConversationHandler) GenerateDocuments(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	job, err := h.jobs.RequestConversationDocuments(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// GET /api/conversations/:id/documents/:kind
func (h *ConversationHandler) DownloadDocument(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	kind, err := documents.ParseKind(c.Param("kind"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	data, err := h.conversations.Document(c.Request.Context(), id, kind)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s"`, id.String()[:8], kind.FileName()))
	c.Data(http.StatusOK, kind.ContentType(), data)
}

// POST /api/conversations/:id/email
func (h *ConversationHandler) SendEmail(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	var req emailRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}
	job, err := h.jobs.RequestConversationEmail(c.Request.Context(), id, req.Resend)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"job": job})
}

// DELETE /api/conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := h.conversations.Delete(c.Request.Context(), id); err != nil {
		response.RespondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func conversationID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_conversation_id", fmt.Errorf("invalid conversation id"))
		return uuid.Nil, false
	}
	return id, true
}
