package documents

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
)

var fixedNow = time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC)

func price(v float64) *float64 { return &v }

func item(name, role string, crewMin, crewMax, cargo int, usd float64) *types.CatalogItem {
	return &types.CatalogItem{
		ID:            uuid.New(),
		Name:          name,
		Manufacturer:  "MISC",
		Role:          role,
		CrewMin:       crewMin,
		CrewMax:       crewMax,
		CargoCapacity: cargo,
		PriceUSD:      price(usd),
		Description:   name + " is a dependable " + strings.ToLower(role) + " ship with room to grow into a long career across the verse.",
	}
}

func record(it *types.CatalogItem, priority int) *types.RecommendationRecord {
	id := it.ID
	return &types.RecommendationRecord{ItemID: &id, DisplayName: it.Name, Manufacturer: it.Manufacturer, Role: it.Role, Priority: priority, Reason: "Matches user's interest in " + it.Role}
}

func snapshot(recs ...*types.RecommendationRecord) *domainagg.ConversationSnapshot {
	name := "Ada"
	completed := fixedNow.Add(-time.Minute)
	convID := uuid.New()
	return &domainagg.ConversationSnapshot{
		Conversation: &types.Conversation{
			ID:          convID,
			Status:      types.ConversationStatusCompleted,
			ContactName: &name,
			StartedAt:   fixedNow.Add(-10 * time.Minute),
			CompletedAt: &completed,
		},
		Transcript: []*types.TranscriptTurn{
			{ConversationID: convID, Seq: 1, Role: types.RoleUser, Content: "I like hauling cargo.", CreatedAt: fixedNow.Add(-9 * time.Minute)},
			{ConversationID: convID, Seq: 2, Role: types.RoleAssistant, Content: "The Freelancer is a great fit.\nIt carries 66 SCU.", CreatedAt: fixedNow.Add(-8 * time.Minute)},
		},
		Recommendations: recs,
	}
}

func TestFleetSummary(t *testing.T) {
	assert.Equal(t, emptyFleetSummary, FleetSummary(nil))

	entries := []FleetEntry{
		{Record: &types.RecommendationRecord{DisplayName: "Freelancer"}, Item: item("Freelancer", "Cargo", 1, 4, 66, 110)},
		{Record: &types.RecommendationRecord{DisplayName: "C2 Hercules"}, Item: item("C2 Hercules", "Heavy Cargo", 2, 3, 696, 400)},
		{Record: &types.RecommendationRecord{DisplayName: "Polaris"}},
	}
	got := FleetSummary(entries)
	assert.Contains(t, got, "consists of 3 ships: Freelancer, C2 Hercules, Polaris.")
	assert.Contains(t, got, "versatility across 2 different roles")
	assert.Contains(t, got, "1 of these ships can be operated solo")
	assert.Contains(t, got, "up to 7 players")
	assert.Contains(t, got, "Combined cargo capacity: 762 SCU")

	single := FleetSummary(entries[:1])
	assert.Contains(t, single, "consists of 1 ship: Freelancer.")
	assert.Contains(t, single, "specializes in Cargo")
}

func TestNextStepsLeadsWithCheapestShip(t *testing.T) {
	entries := []FleetEntry{
		{Item: item("C2 Hercules", "Heavy Cargo", 2, 3, 696, 400), Record: &types.RecommendationRecord{DisplayName: "C2 Hercules"}},
		{Item: item("Aurora MR", "Starter", 1, 1, 3, 25), Record: &types.RecommendationRecord{DisplayName: "Aurora MR"}},
	}
	steps := NextSteps(entries)
	require.Len(t, steps, 5)
	assert.Equal(t, "Start with the Aurora MR ($25) as your entry ship", steps[0])
	assert.Len(t, NextSteps(nil), 4)
}

func TestGroupThousands(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, groupThousands(tc.in))
	}
}

func TestRenderTranscript(t *testing.T) {
	freelancer := item("Freelancer", "Cargo", 1, 4, 66, 110)
	out := string(RenderTranscript(snapshot(record(freelancer, 1)), fixedNow))

	assert.Contains(t, out, "Conversation Transcript")
	assert.Contains(t, out, "Customer:     Ada")
	assert.Contains(t, out, "Messages:     2")
	assert.Contains(t, out, "[18:21:00] You:\n  I like hauling cargo.")
	assert.Contains(t, out, "[18:22:00] Nova:\n  The Freelancer is a great fit.\n  It carries 66 SCU.")
	assert.Contains(t, out, "1. Freelancer (MISC)")
	assert.Contains(t, out, "Generated on March 14, 2026 at 6:30 PM")
	assert.Less(t, strings.Index(out, "You:"), strings.Index(out, "Nova:"))
}

func TestRenderTranscriptInProgress(t *testing.T) {
	snap := snapshot()
	snap.Conversation.CompletedAt = nil
	snap.Conversation.ContactName = nil
	out := string(RenderTranscript(snap, fixedNow))
	assert.Contains(t, out, "Completed:    In Progress")
	assert.NotContains(t, out, "Customer:")
	assert.NotContains(t, out, "Recommended Ships")
}

func TestFleetGuideRendersPNG(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	freelancer := item("Freelancer", "Cargo", 1, 4, 66, 110)
	hercules := item("C2 Hercules", "Heavy Cargo", 2, 3, 696, 400)
	snap := snapshot(record(freelancer, 1), record(hercules, 2))
	entries := []FleetEntry{{Record: snap.Recommendations[0], Item: freelancer}, {Record: snap.Recommendations[1], Item: hercules}}

	one, err := r.FleetGuide(snap, entries[:1], fixedNow)
	require.NoError(t, err)
	two, err := r.FleetGuide(snap, entries, fixedNow)
	require.NoError(t, err)

	imgOne, err := png.Decode(bytes.NewReader(one))
	require.NoError(t, err)
	imgTwo, err := png.Decode(bytes.NewReader(two))
	require.NoError(t, err)
	assert.Equal(t, guideWidth, imgOne.Bounds().Dx())
	assert.Greater(t, imgTwo.Bounds().Dy(), imgOne.Bounds().Dy())

	_, err = r.FleetGuide(nil, nil, fixedNow)
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("Fleet-Guide")
	require.NoError(t, err)
	assert.Equal(t, KindFleetGuide, k)
	assert.Equal(t, "image/png", k.ContentType())

	k, err = ParseKind("transcript")
	require.NoError(t, err)
	assert.Equal(t, "transcript.txt", k.FileName())

	_, err = ParseKind("invoice")
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidArgument))
}

func TestFileStoreSaveAndRead(t *testing.T) {
	s := NewFileStore(t.TempDir())
	id := uuid.New()

	path, err := s.Save(id, KindTranscript, []byte("first"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Dir, id.String(), "transcript.txt"), path)
	_, err = s.Save(id, KindTranscript, []byte("second"))
	require.NoError(t, err)

	data, err := s.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = s.Read(filepath.Join(s.Dir, "missing.txt"))
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	_, err = s.Read("")
	assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
}

type mapLookup map[uuid.UUID]*types.CatalogItem

func (m mapLookup) GetByID(_ dbctx.Context, id uuid.UUID) (*types.CatalogItem, error) {
	if it, ok := m[id]; ok {
		return it, nil
	}
	return nil, errors.New("lookup failed")
}

func TestBuilderWritesBothArtifacts(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	freelancer := item("Freelancer", "Cargo", 1, 4, 66, 110)
	missing := item("Gladius", "Light Fighter", 1, 1, 0, 90)
	placeholder := &types.RecommendationRecord{DisplayName: "Polaris", Priority: 3, Reason: "Mentioned in conversation"}
	snap := snapshot(record(freelancer, 1), record(missing, 2), placeholder)

	b, err := NewBuilder(BuilderDeps{
		Renderer: r,
		Store:    NewFileStore(t.TempDir()),
		Catalog:  mapLookup{freelancer.ID: freelancer},
		Now:      func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	entries := b.Entries(context.Background(), snap.Recommendations)
	require.Len(t, entries, 3)
	assert.NotNil(t, entries[0].Item)
	assert.Nil(t, entries[1].Item)
	assert.Nil(t, entries[2].Item)

	art, err := b.Build(context.Background(), snap)
	require.NoError(t, err)
	assert.FileExists(t, art.TranscriptPath)
	assert.FileExists(t, art.FleetGuidePath)
	assert.True(t, strings.HasSuffix(art.FleetGuidePath, "fleet-guide.png"))

	_, err = NewBuilder(BuilderDeps{})
	assert.Error(t, err)
}
