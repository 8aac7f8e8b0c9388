package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos"
	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/modules/retrieval"
	pkgerrors "github.com/Kcheesee/StarCitiSalesAgent/internal/pkg/errors"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

const (
	DefaultSearchTopK = 5
	MaxSearchTopK     = 10

	defaultEmbedBatch = 50
)

type ShipSearchInput struct {
	Query   string
	TopK    int
	Filters types.FilterSet
	// Boost terms turn the search into a hybrid search over roles.
	Boost []string
}

type ShipSearchOutput struct {
	Query        string                   `json:"query"`
	TotalResults int                      `json:"total_results"`
	Ships        []retrieval.SearchResult `json:"ships"`
	Degraded     bool                     `json:"degraded,omitempty"`
}

type CatalogService interface {
	Search(ctx context.Context, in ShipSearchInput) (*ShipSearchOutput, error)
	GetBySlug(ctx context.Context, slug string) (*types.CatalogItem, error)
	// EmbedMissing computes vectors for items stored without one and returns
	// how many were updated.
	EmbedMissing(ctx context.Context, batch int) (int, error)
}

type catalogService struct {
	log      *logger.Logger
	items    repos.CatalogItemRepo
	engine   *retrieval.Engine
	embedder retrieval.Embedder
}

func NewCatalogService(baseLog *logger.Logger, items repos.CatalogItemRepo, engine *retrieval.Engine, embedder retrieval.Embedder) CatalogService {
	return &catalogService{
		log:      baseLog.With("service", "CatalogService"),
		items:    items,
		engine:   engine,
		embedder: embedder,
	}
}

// Search never fails on embedding errors; it answers with the fallback list
// and Degraded set instead.
func (s *catalogService) Search(ctx context.Context, in ShipSearchInput) (*ShipSearchOutput, error) {
	query := strings.TrimSpace(in.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", pkgerrors.ErrInvalidArgument)
	}
	topK := in.TopK
	if topK == 0 {
		topK = DefaultSearchTopK
	}
	if topK < 1 || topK > MaxSearchTopK {
		return nil, fmt.Errorf("%w: top_k must be between 1 and %d", pkgerrors.ErrInvalidArgument, MaxSearchTopK)
	}
	if s.engine == nil {
		return nil, fmt.Errorf("retrieval engine not configured")
	}

	out := &ShipSearchOutput{Query: query}
	var (
		results []retrieval.SearchResult
		err     error
	)
	if boost := cleanTerms(in.Boost); len(boost) > 0 {
		results, err = s.engine.HybridSearch(ctx, query, topK, retrieval.AnySimilarity, in.Filters, boost)
	} else {
		results, err = s.engine.Search(ctx, query, topK, retrieval.AnySimilarity, in.Filters)
	}
	if err != nil {
		s.log.Warn("ship search degraded", "error", err)
		results = s.engine.Fallback(ctx)
		if len(results) > topK {
			results = results[:topK]
		}
		out.Degraded = true
	}
	out.Ships = results
	if out.Ships == nil {
		out.Ships = []retrieval.SearchResult{}
	}
	out.TotalResults = len(out.Ships)
	return out, nil
}

func (s *catalogService) GetBySlug(ctx context.Context, slug string) (*types.CatalogItem, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		return nil, fmt.Errorf("%w: missing slug", pkgerrors.ErrInvalidArgument)
	}
	it, err := s.items.GetBySlug(dbctx.From(ctx), slug)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, fmt.Errorf("%w: ship %q", pkgerrors.ErrNotFound, slug)
	}
	return it, nil
}

func (s *catalogService) EmbedMissing(ctx context.Context, batch int) (int, error) {
	if s.embedder == nil {
		return 0, fmt.Errorf("embedder not configured")
	}
	if batch <= 0 {
		batch = defaultEmbedBatch
	}
	dbc := dbctx.From(ctx)
	updated := 0
	for {
		items, err := s.items.ListMissingEmbedding(dbc, batch)
		if err != nil {
			return updated, fmt.Errorf("list missing embeddings: %w", err)
		}
		if len(items) == 0 {
			return updated, nil
		}
		texts := make([]string, len(items))
		for i, it := range items {
			texts[i] = SearchText(it)
		}
		vecs, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return updated, fmt.Errorf("embed batch: %w", err)
		}
		if len(vecs) != len(items) {
			return updated, fmt.Errorf("embed batch: got %d vectors for %d items", len(vecs), len(items))
		}
		progressed := false
		for i, it := range items {
			if len(vecs[i]) == 0 {
				s.log.Warn("empty embedding", "item_id", it.ID, "name", it.Name)
				continue
			}
			if err := s.items.UpdateEmbedding(dbc, it.ID, vecs[i]); err != nil {
				return updated, fmt.Errorf("store embedding %s: %w", it.ID, err)
			}
			updated++
			progressed = true
		}
		s.log.Info("embedded catalog batch", "count", len(items), "total", updated)
		if !progressed {
			return updated, fmt.Errorf("embedder returned only empty vectors")
		}
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
	}
}

// SearchText is the text a ship is embedded from: labelled fields joined by
// " | ".
func SearchText(it *types.CatalogItem) string {
	if it == nil {
		return ""
	}
	parts := []string{"Ship Name: " + it.Name}
	if it.Manufacturer != "" {
		parts = append(parts, "Manufacturer: "+it.Manufacturer)
	}
	if it.Role != "" {
		parts = append(parts, "Role: "+it.Role)
	}
	if d := strings.TrimSpace(it.Description); d != "" {
		parts = append(parts, "Description: "+d)
	}
	var specs []string
	if it.CargoCapacity > 0 {
		specs = append(specs, fmt.Sprintf("%d SCU cargo", it.CargoCapacity))
	}
	if it.CrewMin > 0 {
		if it.CrewMax > it.CrewMin {
			specs = append(specs, fmt.Sprintf("%d-%d crew", it.CrewMin, it.CrewMax))
		} else {
			specs = append(specs, fmt.Sprintf("%d crew", it.CrewMin))
		}
	}
	if len(specs) > 0 {
		parts = append(parts, "Specifications: "+strings.Join(specs, ", "))
	}
	return strings.Join(parts, " | ")
}

func cleanTerms(in []string) []string {
	out := make([]string, 0, len(in))
	for _, raw := range in {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				out = append(out, t)
			}
		}
	}
	return out
}
