package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

type ItemLookup interface {
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.CatalogItem, error)
}

type Artifacts struct {
	TranscriptPath string `json:"transcript_path"`
	FleetGuidePath string `json:"fleet_guide_path"`
}

type BuilderDeps struct {
	Log      *logger.Logger
	Renderer *Renderer
	Store    *FileStore
	Catalog  ItemLookup
	Now      func() time.Time
}

// Builder renders both artifacts for a conversation and stores them.
type Builder struct {
	deps BuilderDeps
	log  *logger.Logger
}

func NewBuilder(deps BuilderDeps) (*Builder, error) {
	if deps.Renderer == nil || deps.Store == nil {
		return nil, fmt.Errorf("documents: renderer and store are required")
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Builder{deps: deps, log: deps.Log.With("component", "DocumentBuilder")}, nil
}

func (b *Builder) Build(ctx context.Context, snap *domainagg.ConversationSnapshot) (*Artifacts, error) {
	if snap == nil || snap.Conversation == nil {
		return nil, fmt.Errorf("documents: conversation required")
	}
	convID := snap.Conversation.ID
	ctx, span := observability.StartSpan(ctx, "documents.build",
		attribute.String("conversation.id", convID.String()),
		attribute.Int("documents.recommendations", len(snap.Recommendations)),
	)
	defer span.End()

	now := b.deps.Now()
	entries := b.Entries(ctx, snap.Recommendations)

	out := &Artifacts{}
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		path, err := b.deps.Store.Save(convID, KindTranscript, b.deps.Renderer.Transcript(snap, now))
		if err != nil {
			return err
		}
		out.TranscriptPath = path
		return nil
	})
	g.Go(func() error {
		png, err := b.deps.Renderer.FleetGuide(snap, entries, now)
		if err != nil {
			return err
		}
		path, err := b.deps.Store.Save(convID, KindFleetGuide, png)
		if err != nil {
			return err
		}
		out.FleetGuidePath = path
		return nil
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	b.log.Info("documents rendered", "conversation_id", convID, "ships", len(entries))
	return out, nil
}

// Entries resolves each record's catalog item. Lookup failures leave Item nil.
func (b *Builder) Entries(ctx context.Context, records []*types.RecommendationRecord) []FleetEntry {
	out := make([]FleetEntry, 0, len(records))
	dbc := dbctx.From(ctx)
	for _, r := range records {
		e := FleetEntry{Record: r}
		if b.deps.Catalog != nil && !r.IsPlaceholder() {
			it, err := b.deps.Catalog.GetByID(dbc, *r.ItemID)
			if err != nil {
				b.log.Warn("catalog lookup failed", "item_id", *r.ItemID, "error", err)
			}
			e.Item = it
		}
		out = append(out, e)
	}
	return out
}
