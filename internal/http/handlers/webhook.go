package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/http/response"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

const maxWebhookBody = 5 << 20

var signatureHeaders = []string{"elevenlabs-signature", "x-elevenlabs-signature"}

type WebhookHandler struct {
	webhooks services.WebhookService
}

func NewWebhookHandler(webhooks services.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// POST /api/webhooks/post-call
func (h *WebhookHandler) PostCall(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	sig := ""
	for _, name := range signatureHeaders {
		if sig = c.GetHeader(name); sig != "" {
			break
		}
	}
	res, err := h.webhooks.HandlePostCall(c.Request.Context(), body, sig)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, res)
}
