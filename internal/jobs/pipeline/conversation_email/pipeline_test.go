package conversation_email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	jobrt "github.com/Kcheesee/StarCitiSalesAgent/internal/jobs/runtime"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/sendgrid"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

type fakeStore struct {
	snap      *domainagg.ConversationSnapshot
	sentAt    *time.Time
	markErr   error
	markCalls int
}

func (s *fakeStore) Load(_ context.Context, id uuid.UUID) (*domainagg.ConversationSnapshot, error) {
	if s.snap == nil || s.snap.Conversation.ID != id {
		return nil, domainagg.NewError(domainagg.CodeNotFound, "load", "conversation not found", nil)
	}
	return s.snap, nil
}

func (s *fakeStore) MarkEmailSent(_ context.Context, _ uuid.UUID, at time.Time) error {
	s.markCalls++
	if s.markErr != nil {
		return s.markErr
	}
	s.sentAt = &at
	return nil
}

type fakeSender struct {
	err   error
	sends int
}

func (f *fakeSender) SendFleetEmail(context.Context, *domainagg.ConversationSnapshot) (*sendgrid.SendResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sends++
	return &sendgrid.SendResult{StatusCode: 202, MessageID: "msg-1"}, nil
}

type fakeEvents struct {
	events []realtime.Event
}

func (f *fakeEvents) Publish(_ context.Context, ev realtime.Event) error {
	f.events = append(f.events, ev)
	return nil
}

func readySnapshot() *domainagg.ConversationSnapshot {
	email := "ana@example.com"
	now := time.Now().UTC()
	conv := &types.Conversation{
		ID:                uuid.New(),
		Status:            types.ConversationStatusCompleted,
		ContactEmail:      &email,
		CompletedAt:       &now,
		TranscriptDocPath: "/tmp/transcript.md",
		FleetGuideDocPath: "/tmp/fleet-guide.png",
	}
	return &domainagg.ConversationSnapshot{
		Conversation: conv,
		Recommendations: []*types.RecommendationRecord{
			{ConversationID: conv.ID, DisplayName: "Cutlass Black", Priority: 1},
			{ConversationID: conv.ID, DisplayName: "Prospector", Priority: 2},
		},
	}
}

func jobFor(convID uuid.UUID, payload string) *jobrt.Context {
	job := &types.JobRun{
		ID:         uuid.New(),
		JobType:    "conversation_email",
		EntityType: "conversation",
		EntityID:   &convID,
		Status:     types.JobStatusRunning,
		Payload:    datatypes.JSON([]byte(payload)),
	}
	return jobrt.NewContext(context.Background(), job, nil, nil)
}

func newPipeline(store Store, sender *fakeSender, events *fakeEvents) *Pipeline {
	p := New(logger.Nop(), store, sender, nil)
	if events != nil {
		p.events = events
	}
	p.now = func() time.Time { return time.Date(2954, 3, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestRunSendsAndMarks(t *testing.T) {
	snap := readySnapshot()
	store := &fakeStore{snap: snap}
	sender := &fakeSender{}
	events := &fakeEvents{}

	jc := jobFor(snap.Conversation.ID, `{}`)
	require.NoError(t, newPipeline(store, sender, events).Run(jc))

	assert.Equal(t, types.JobStatusSucceeded, jc.Job.Status)
	assert.Equal(t, 1, sender.sends)
	require.NotNil(t, store.sentAt)
	assert.Equal(t, 2954, store.sentAt.Year())
	require.Len(t, events.events, 1)
	assert.Equal(t, realtime.EventEmailSent, events.events[0].Type)
	assert.JSONEq(t, `{"conversation_id":"`+snap.Conversation.ID.String()+`","status_code":202,"message_id":"msg-1","ships":2}`, string(jc.Job.Result))
}

func TestRunSkipsAlreadySent(t *testing.T) {
	snap := readySnapshot()
	snap.Conversation.EmailSent = true
	store := &fakeStore{snap: snap}
	sender := &fakeSender{}

	jc := jobFor(snap.Conversation.ID, `{}`)
	require.NoError(t, newPipeline(store, sender, nil).Run(jc))

	assert.Equal(t, types.JobStatusSucceeded, jc.Job.Status)
	assert.Zero(t, sender.sends)
	assert.Contains(t, string(jc.Job.Result), "already sent")
}

func TestRunResendsWhenAsked(t *testing.T) {
	snap := readySnapshot()
	snap.Conversation.EmailSent = true
	store := &fakeStore{snap: snap}
	sender := &fakeSender{}

	jc := jobFor(snap.Conversation.ID, `{"resend":true}`)
	require.NoError(t, newPipeline(store, sender, nil).Run(jc))

	assert.Equal(t, types.JobStatusSucceeded, jc.Job.Status)
	assert.Equal(t, 1, sender.sends)
}

func TestRunSkipsWithoutEmail(t *testing.T) {
	snap := readySnapshot()
	snap.Conversation.ContactEmail = nil
	sender := &fakeSender{}

	jc := jobFor(snap.Conversation.ID, `{}`)
	require.NoError(t, newPipeline(&fakeStore{snap: snap}, sender, nil).Run(jc))

	assert.Equal(t, types.JobStatusSucceeded, jc.Job.Status)
	assert.Zero(t, sender.sends)
	assert.Contains(t, string(jc.Job.Result), "no contact email")
}

func TestRunWaitsForDocuments(t *testing.T) {
	snap := readySnapshot()
	snap.Conversation.FleetGuideDocPath = ""
	sender := &fakeSender{}

	jc := jobFor(snap.Conversation.ID, `{}`)
	require.NoError(t, newPipeline(&fakeStore{snap: snap}, sender, nil).Run(jc))

	assert.Equal(t, types.JobStatusFailed, jc.Job.Status)
	assert.Equal(t, "documents", jc.Job.Stage)
	assert.Zero(t, sender.sends)
}

func TestRunFailsOnSendError(t *testing.T) {
	snap := readySnapshot()
	store := &fakeStore{snap: snap}
	sender := &fakeSender{err: errors.New("sendgrid: 401")}

	jc := jobFor(snap.Conversation.ID, `{}`)
	require.NoError(t, newPipeline(store, sender, nil).Run(jc))

	assert.Equal(t, types.JobStatusFailed, jc.Job.Status)
	assert.Equal(t, "send", jc.Job.Stage)
	assert.Zero(t, store.markCalls)
}

func TestRunSucceedsWhenMarkFails(t *testing.T) {
	snap := readySnapshot()
	store := &fakeStore{snap: snap, markErr: errors.New("db down")}
	sender := &fakeSender{}

	jc := jobFor(snap.Conversation.ID, `{}`)
	require.NoError(t, newPipeline(store, sender, nil).Run(jc))

	assert.Equal(t, types.JobStatusSucceeded, jc.Job.Status)
	assert.Equal(t, 1, store.markCalls)
	assert.Equal(t, 1, sender.sends)
}
