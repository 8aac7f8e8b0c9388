package analysis

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

const samplePayload = `{
  "type": "post_call_transcription",
  "event_timestamp": 1739537297,
  "data": {
    "agent_id": "agent_1",
    "conversation_id": "call_123",
    "status": "done",
    "transcript": [
      {"role": "agent", "message": "Welcome to StarCiti, what do you like to do?", "time_in_call_secs": 0},
      {"role": "user", "message": "Mostly cargo hauling with a friend.", "time_in_call_secs": 4.5},
      {"role": "user", "message": "   ", "time_in_call_secs": 6},
      {"role": "tool", "message": "lookup", "time_in_call_secs": 7},
      {"role": "agent", "message": "The Freelancer fits that well.", "time_in_call_secs": 9}
    ],
    "metadata": {"start_time_unix_secs": 1739537000},
    "analysis": {
      "call_successful": "success",
      "transcript_summary": "Cargo hauling with a friend.",
      "data_collection_results": {
        "recommended_ships": {"data_collection_id": "recommended_ships", "value": "Freelancer, Polaris; Hull A"},
        "user_email": {"data_collection_id": "user_email", "value": "pilot@example.com"},
        "user_name": {"data_collection_id": "user_name", "value": "Ada"},
        "playstyle": {"data_collection_id": "playstyle", "value": "cargo"}
      }
    }
  }
}`

func TestPayloadDecodeAndTurns(t *testing.T) {
	var p PostCallPayload
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &p))
	assert.Equal(t, EventPostCallTranscription, p.Type)

	start := p.StartedAt()
	assert.Equal(t, time.Unix(1739537000, 0).UTC(), start)

	turns := p.Data.Turns(start)
	require.Len(t, turns, 3)
	assert.Equal(t, types.RoleAssistant, turns[0].Role)
	assert.Equal(t, types.RoleUser, turns[1].Role)
	assert.Equal(t, start.Add(4500*time.Millisecond), turns[1].At)
	assert.Equal(t, "The Freelancer fits that well.", turns[2].Content)
}

func TestStartedAtFallsBackToEventTimestamp(t *testing.T) {
	p := PostCallPayload{EventTimestamp: 1739537297}
	assert.Equal(t, time.Unix(1739537297, 0).UTC(), p.StartedAt())
	assert.True(t, PostCallPayload{}.StartedAt().IsZero())
}

func TestDataCollectionAccessors(t *testing.T) {
	var p PostCallPayload
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &p))
	a := p.Data.Analysis

	assert.Equal(t, []string{"Freelancer", "Polaris", "Hull A"}, a.ShipNames())
	assert.Equal(t, "pilot@example.com", a.ContactEmail())
	assert.Equal(t, "Ada", a.ContactName())
	assert.Equal(t, "cargo", a.Playstyle())

	empty := CallAnalysis{}
	assert.Nil(t, empty.ShipNames())
	assert.Empty(t, empty.ContactEmail())
}

func TestValueStringFlattensLists(t *testing.T) {
	assert.Equal(t, "Gladius, Arrow", valueString([]any{"Gladius", " ", "Arrow"}))
	assert.Equal(t, "3", valueString(float64(3)))
	assert.Empty(t, valueString(nil))
}
