package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/ctxutil"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderRequestID = "X-Request-Id"
)

// AttachTraceContext stores request, trace and conversation ids on the
// request context and echoes the first two back as headers. The trace id
// prefers the caller's header, then the active otel span.
func AttachTraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		td := &ctxutil.TraceData{
			RequestID:      headerOr(c, HeaderRequestID, uuid.NewString),
			TraceID:        headerOr(c, HeaderTraceID, func() string { return spanTraceID(c) }),
			ConversationID: conversationParam(c),
		}
		c.Request = c.Request.WithContext(ctxutil.WithTraceData(c.Request.Context(), td))
		c.Writer.Header().Set(HeaderRequestID, td.RequestID)
		c.Writer.Header().Set(HeaderTraceID, td.TraceID)
		c.Next()
	}
}

func headerOr(c *gin.Context, name string, fallback func() string) string {
	if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
		return v
	}
	return fallback()
}

func spanTraceID(c *gin.Context) string {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return uuid.NewString()
}

// conversationParam is the :id of a /api/conversations route, if valid.
func conversationParam(c *gin.Context) string {
	if !strings.HasPrefix(c.FullPath(), "/api/conversations/:id") {
		return ""
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ""
	}
	return id.String()
}
