package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/observability"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

const (
	modeSemantic = "semantic"
	modeHybrid   = "hybrid"
	modeFallback = "fallback"
	modeSearch   = "search"
)

// AnySimilarity disables the similarity cutoff of Search and HybridSearch;
// cosine scores never fall below it.
const AnySimilarity = -1.0

var errEmptyEmbedding = errors.New("embedder returned no vector")

type EngineDeps struct {
	Log         *logger.Logger
	Embedder    Embedder
	Catalog     CatalogSource
	Metrics     *observability.Metrics
	Config      Config
	Constraints ConstraintExtractor
}

type Engine struct {
	log         *logger.Logger
	embedder    Embedder
	catalog     CatalogSource
	metrics     *observability.Metrics
	cfg         Config
	constraints ConstraintExtractor
}

func NewEngine(deps EngineDeps) *Engine {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		log:         log.With("component", "RetrievalEngine"),
		embedder:    deps.Embedder,
		catalog:     deps.Catalog,
		metrics:     deps.Metrics,
		cfg:         deps.Config.normalized(),
		constraints: deps.Constraints,
	}
}

// RetrieveInput is one turn's retrieval request. A zero TopK or a nil
// MinSimilarity takes the configured default; use Threshold to set one,
// including 0.
type RetrieveInput struct {
	LatestUserText string
	Transcript     []*types.TranscriptTurn
	TopK           int
	MinSimilarity  *float64
	Filters        types.FilterSet
}

func Threshold(v float64) *float64 { return &v }

// QueryPlan is what Retrieve would search for, before any I/O.
type QueryPlan struct {
	Interests []Interest
	Query     string
	Filters   types.FilterSet
	Rules     []string
}

// Plan derives the query from the latest text and the filters from the whole
// dialogue. Explicit filters on the input win over extracted ones.
func (e *Engine) Plan(in RetrieveInput) QueryPlan {
	interests := ExtractInterests(in.LatestUserText)
	extracted, rules := e.constraints.ExtractWithRules(DialogueText(in.Transcript, in.LatestUserText))
	return QueryPlan{
		Interests: interests,
		Query:     ComposeQuery(interests),
		Filters:   extracted.Merge(in.Filters),
		Rules:     rules,
	}
}

// Retrieve never fails. Any embedding or catalog error degrades to the
// configured fallback list and reports degraded=true.
func (e *Engine) Retrieve(ctx context.Context, in RetrieveInput) ([]SearchResult, bool) {
	start := time.Now()
	plan := e.Plan(in)
	topK, minSim := e.limits(in)

	ctx, span := observability.StartSpan(ctx, "retrieval.retrieve",
		attribute.String("retrieval.query", plan.Query),
		attribute.Int("retrieval.top_k", topK),
		attribute.StringSlice("retrieval.rules", plan.Rules),
	)
	defer span.End()

	results, err := e.search(ctx, plan.Query, topK, minSim, plan.Filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieval degraded")
		return e.degrade(ctx, err, topK, start), true
	}
	span.SetAttributes(attribute.Int("retrieval.results", len(results)))
	e.metrics.ObserveRetrieval(modeSemantic, time.Since(start))
	return results, false
}

// HybridSearch is Search over the raw query with a role boost: it overfetches
// twice topK, adds the configured boost to results whose role contains any of
// boostTerms, then re-ranks and truncates. Errors surface to the caller.
func (e *Engine) HybridSearch(ctx context.Context, query string, topK int, minSimilarity float64, filters types.FilterSet, boostTerms []string) ([]SearchResult, error) {
	start := time.Now()
	query, topK = e.rawQuery(query, topK)

	ctx, span := observability.StartSpan(ctx, "retrieval.hybrid",
		attribute.String("retrieval.query", query),
		attribute.StringSlice("retrieval.boost_terms", boostTerms),
	)
	defer span.End()

	results, err := e.search(ctx, query, topK*2, minSimilarity, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	results = Boost(results, boostTerms, e.cfg.Hybrid.Boost)
	if len(results) > topK {
		results = results[:topK]
	}
	e.metrics.ObserveRetrieval(modeHybrid, time.Since(start))
	return results, nil
}

// Boost adds amount to every result whose role contains one of terms,
// case-insensitively, and re-sorts stably. The input slice is reordered.
func Boost(results []SearchResult, terms []string, amount float64) []SearchResult {
	for i := range results {
		role := strings.ToLower(results[i].Item.Role)
		for _, t := range terms {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" && strings.Contains(role, t) {
				results[i].Similarity += amount
				break
			}
		}
	}
	sortResults(results)
	return results
}

// Search runs a raw query without interest or constraint extraction and
// surfaces errors to the caller.
func (e *Engine) Search(ctx context.Context, query string, topK int, minSimilarity float64, filters types.FilterSet) ([]SearchResult, error) {
	start := time.Now()
	query, topK = e.rawQuery(query, topK)
	ctx, span := observability.StartSpan(ctx, "retrieval.search", attribute.String("retrieval.query", query))
	defer span.End()

	results, err := e.search(ctx, query, topK, minSimilarity, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	e.metrics.ObserveRetrieval(modeSearch, time.Since(start))
	return results, nil
}

// Fallback resolves the configured ship names against the catalog. Names that
// do not resolve are skipped.
func (e *Engine) Fallback(ctx context.Context) []SearchResult {
	out := make([]SearchResult, 0, len(e.cfg.Fallback.Ships))
	if e.catalog == nil {
		return out
	}
	dbc := dbctx.From(ctx)
	for _, name := range e.cfg.Fallback.Ships {
		it, err := e.catalog.FindByNameLike(dbc, name)
		if err != nil {
			e.log.Warn("fallback lookup failed", "ship", name, "error", err)
			continue
		}
		if it == nil {
			continue
		}
		out = append(out, SearchResult{Item: it, Similarity: e.cfg.Fallback.Score})
	}
	return out
}

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) limits(in RetrieveInput) (int, float64) {
	topK := in.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	minSim := e.cfg.MinSimilarity
	if in.MinSimilarity != nil {
		minSim = *in.MinSimilarity
	}
	return topK, minSim
}

func (e *Engine) rawQuery(query string, topK int) (string, int) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = defaultQuery
	}
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	return query, topK
}

func (e *Engine) degrade(ctx context.Context, cause error, topK int, start time.Time) []SearchResult {
	e.log.Warn("retrieval degraded", "error", cause)
	out := e.Fallback(ctx)
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	e.metrics.ObserveRetrieval(modeFallback, time.Since(start))
	return out
}

func (e *Engine) search(ctx context.Context, query string, topK int, minSimilarity float64, filters types.FilterSet) ([]SearchResult, error) {
	if e.embedder == nil || e.catalog == nil {
		return nil, fmt.Errorf("retrieval engine not configured")
	}
	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	items, err := e.catalog.ListForSearch(dbctx.From(ctx), filters)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	items = ApplyFilter(items, filters)
	return cutoff(Rank(vec, items), minSimilarity, topK), nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout())
	defer cancel()
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, errEmptyEmbedding
	}
	return vecs[0], nil
}
