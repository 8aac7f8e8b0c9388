package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
)

// EventPostCallTranscription is the only webhook type the analyzer handles.
const EventPostCallTranscription = "post_call_transcription"

// PostCallPayload is the voice provider's post-call webhook body.
type PostCallPayload struct {
	Type           string   `json:"type"`
	EventTimestamp int64    `json:"event_timestamp"`
	Data           CallData `json:"data"`
}

type CallData struct {
	AgentID        string         `json:"agent_id"`
	ConversationID string         `json:"conversation_id"`
	Status         string         `json:"status"`
	Transcript     []CallTurn     `json:"transcript"`
	Analysis       CallAnalysis   `json:"analysis"`
	Metadata       map[string]any `json:"metadata"`
}

type CallTurn struct {
	Role           string  `json:"role"`
	Message        string  `json:"message"`
	TimeInCallSecs float64 `json:"time_in_call_secs"`
}

type CallAnalysis struct {
	CallSuccessful        string                          `json:"call_successful"`
	TranscriptSummary     string                          `json:"transcript_summary"`
	DataCollectionResults map[string]DataCollectionResult `json:"data_collection_results"`
}

type DataCollectionResult struct {
	DataCollectionID string `json:"data_collection_id"`
	Value            any    `json:"value"`
	Rationale        string `json:"rationale"`
}

// StartedAt is the call start, from metadata.start_time_unix_secs when present
// and otherwise the event timestamp.
func (p PostCallPayload) StartedAt() time.Time {
	if v, ok := p.Data.Metadata["start_time_unix_secs"]; ok {
		switch n := v.(type) {
		case float64:
			if n > 0 {
				return time.Unix(int64(n), 0).UTC()
			}
		case int64:
			if n > 0 {
				return time.Unix(n, 0).UTC()
			}
		}
	}
	if p.EventTimestamp > 0 {
		return time.Unix(p.EventTimestamp, 0).UTC()
	}
	return time.Time{}
}

// Turns maps provider turns to transcript turns. The provider calls the
// assistant "agent"; empty messages and unknown roles are dropped.
func (d CallData) Turns(startedAt time.Time) []domainagg.TurnInput {
	out := make([]domainagg.TurnInput, 0, len(d.Transcript))
	for _, t := range d.Transcript {
		msg := strings.TrimSpace(t.Message)
		if msg == "" {
			continue
		}
		var role string
		switch strings.ToLower(strings.TrimSpace(t.Role)) {
		case "user":
			role = types.RoleUser
		case "agent", "assistant":
			role = types.RoleAssistant
		default:
			continue
		}
		turn := domainagg.TurnInput{Role: role, Content: msg}
		if !startedAt.IsZero() {
			turn.At = startedAt.Add(time.Duration(t.TimeInCallSecs * float64(time.Second)))
		}
		out = append(out, turn)
	}
	return out
}

// collected returns the string value of the first data collection entry whose
// id contains one of keys. Earlier keys win; ids are tried in sorted order.
func (a CallAnalysis) collected(keys ...string) string {
	ids := make([]string, 0, len(a.DataCollectionResults))
	for id := range a.DataCollectionResults {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, k := range keys {
		for _, id := range ids {
			if !strings.Contains(strings.ToLower(id), k) {
				continue
			}
			if s := valueString(a.DataCollectionResults[id].Value); s != "" {
				return s
			}
		}
	}
	return ""
}

// ShipNames returns the ship names the provider's data collection captured,
// split on commas and semicolons.
func (a CallAnalysis) ShipNames() []string {
	raw := a.collected("ship")
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '\n' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (a CallAnalysis) ContactEmail() string { return a.collected("email") }

func (a CallAnalysis) ContactName() string { return a.collected("user_name", "name") }

func (a CallAnalysis) Playstyle() string { return a.collected("playstyle") }

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, x := range t {
			if s := valueString(x); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
