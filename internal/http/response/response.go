package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr classifies err with apierr. Internal errors are not echoed to
// the client.
func RespondErr(c *gin.Context, err error) {
	if err == nil {
		RespondError(c, http.StatusInternalServerError, "internal", nil)
		return
	}
	_ = c.Error(err)
	ae := apierr.From(err)
	if ae.Status >= http.StatusInternalServerError && ae.Status != http.StatusBadGateway {
		c.JSON(ae.Status, ErrorEnvelope{Error: APIError{Message: "internal server error", Code: ae.Code}})
		return
	}
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}
