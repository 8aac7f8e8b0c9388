package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos"
	repotest "github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos/testutil"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/consultant"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/documents"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/realtime"
)

type stubTurns struct {
	calls int
}

func (s *stubTurns) ProcessMessage(_ context.Context, id uuid.UUID, text string, _ bool) (*consultant.TurnResult, error) {
	s.calls++
	return &consultant.TurnResult{ConversationID: id, Reply: "echo: " + text}, nil
}

type triggerRecorder struct {
	ids []uuid.UUID
}

func (r *triggerRecorder) EnsureConversationDocuments(_ context.Context, id uuid.UUID) error {
	r.ids = append(r.ids, id)
	return nil
}

type eventRecorder struct {
	events []realtime.Event
}

func (r *eventRecorder) Publish(_ context.Context, ev realtime.Event) error {
	r.events = append(r.events, ev)
	return nil
}

type conversationFixture struct {
	svc     ConversationService
	store   domainagg.ConversationAggregate
	trigger *triggerRecorder
	events  *eventRecorder
	docs    string
}

func newConversationFixture(t *testing.T) *conversationFixture {
	t.Helper()
	db := repotest.SQLite(t)
	log := repotest.Logger(t)
	store := aggregates.NewConversationAggregate(aggregates.ConversationAggregateDeps{
		Base:            aggregates.BaseDeps{DB: db, Log: log},
		Conversations:   repos.NewConversationRepo(db, log),
		Transcript:      repos.NewTranscriptTurnRepo(db, log),
		Recommendations: repos.NewRecommendationRepo(db, log),
	})
	f := &conversationFixture{
		store:   store,
		trigger: &triggerRecorder{},
		events:  &eventRecorder{},
		docs:    t.TempDir(),
	}
	svc, err := NewConversationService(ConversationServiceDeps{
		Log:       log,
		Store:     store,
		Turns:     &stubTurns{},
		Documents: f.trigger,
		Files:     documents.NewFileStore(f.docs),
		Events:    f.events,
		Now:       func() time.Time { return time.Date(2954, 5, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestConversationStartValidatesContact(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartConversationInput{UserName: "  Ana   Reyes ", UserEmail: "Ana@Example.COM"})
	require.NoError(t, err)
	require.NotNil(t, snap.Conversation.ContactEmail)
	assert.Equal(t, "ana@example.com", *snap.Conversation.ContactEmail)
	require.NotNil(t, snap.Conversation.ContactName)
	assert.Equal(t, "Ana Reyes", *snap.Conversation.ContactName)

	_, err = f.svc.Start(ctx, StartConversationInput{UserEmail: "not-an-email"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)

	anon, err := f.svc.Start(ctx, StartConversationInput{})
	require.NoError(t, err)
	assert.Nil(t, anon.Conversation.ContactEmail)
}

func TestConversationCompleteTriggersDocuments(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartConversationInput{})
	require.NoError(t, err)
	id := snap.Conversation.ID
	itemID := uuid.New()
	_, err = f.store.ReplaceRecommendations(ctx, domainagg.ReplaceRecommendationsInput{
		ConversationID:  id,
		Recommendations: []domainagg.RecommendationInput{{ItemID: &itemID, DisplayName: "Cutlass Black"}},
	})
	require.NoError(t, err)

	done, err := f.svc.Complete(ctx, CompleteConversationInput{ConversationID: id, Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)
	assert.True(t, done.Conversation.IsCompleted())
	require.NotNil(t, done.Conversation.CompletedAt)
	assert.Equal(t, 2954, done.Conversation.CompletedAt.Year())
	assert.Equal(t, []uuid.UUID{id}, f.trigger.ids)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, realtime.EventConversationCompleted, f.events.events[0].Type)
}

func TestConversationCompleteWithoutRecommendations(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartConversationInput{})
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, CompleteConversationInput{ConversationID: snap.Conversation.ID, Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Empty(t, f.trigger.ids)

	_, err = f.svc.Complete(ctx, CompleteConversationInput{ConversationID: snap.Conversation.ID, Email: "bad"})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)

	_, err = f.svc.Complete(ctx, CompleteConversationInput{ConversationID: uuid.New(), Email: "ana@example.com"})
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
}

func TestConversationDocument(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartConversationInput{})
	require.NoError(t, err)
	id := snap.Conversation.ID

	_, err = f.svc.Document(ctx, id, documents.KindTranscript)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)

	itemID := uuid.New()
	_, err = f.store.ReplaceRecommendations(ctx, domainagg.ReplaceRecommendationsInput{
		ConversationID:  id,
		Recommendations: []domainagg.RecommendationInput{{ItemID: &itemID, DisplayName: "Prospector"}},
	})
	require.NoError(t, err)
	_, err = f.svc.Complete(ctx, CompleteConversationInput{ConversationID: id, Email: "ana@example.com"})
	require.NoError(t, err)

	path := filepath.Join(f.docs, "transcript.md")
	require.NoError(t, os.WriteFile(path, []byte("# Transcript"), 0o644))
	require.NoError(t, f.store.MarkDocuments(ctx, domainagg.MarkDocumentsInput{
		ConversationID:    id,
		TranscriptDocPath: path,
		FleetGuideDocPath: filepath.Join(f.docs, "missing.png"),
	}))

	data, err := f.svc.Document(ctx, id, documents.KindTranscript)
	require.NoError(t, err)
	assert.Equal(t, "# Transcript", string(data))
}

func TestConversationDelete(t *testing.T) {
	f := newConversationFixture(t)
	ctx := context.Background()

	snap, err := f.svc.Start(ctx, StartConversationInput{})
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, snap.Conversation.ID))

	_, err = f.svc.Get(ctx, snap.Conversation.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, uuid.Nil), pkgerrors.ErrInvalidArgument)
}

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]bool{
		"pilot@example.com":         true,
		"Pilot <pilot@example.com>": true,
		"pilot@localhost":           false,
		"":                          false,
		"no-at-sign":                false,
	}
	for in, ok := range cases {
		_, err := NormalizeEmail(in)
		if ok {
			assert.NoError(t, err, in)
		} else {
			assert.ErrorIs(t, err, pkgerrors.ErrInvalidArgument, in)
		}
	}
}
