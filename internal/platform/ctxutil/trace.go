package ctxutil

import "context"

type traceKey struct{}

// TraceData follows a request, and any job it enqueues, through the logs.
type TraceData struct {
	TraceID        string
	RequestID      string
	ConversationID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(Default(ctx), traceKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceKey{}).(*TraceData)
	return td
}

// LogFields renders the non-empty ids as logger key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	var out []interface{}
	for _, kv := range [...][2]string{
		{"trace_id", td.TraceID},
		{"request_id", td.RequestID},
		{"conversation_id", td.ConversationID},
	} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}

func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
