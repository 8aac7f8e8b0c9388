package retrieval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
)

type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	def     []float32
	err     error
	calls   []string
}

func (f *fakeEmbedder) Embed(_ context.Context, inputs []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inputs...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if v, ok := f.vectors[in]; ok {
			out[i] = v
			continue
		}
		out[i] = f.def
	}
	return out, nil
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeCatalog struct {
	items   []*types.CatalogItem
	listErr error
	filters []types.FilterSet
}

func (c *fakeCatalog) ListForSearch(_ dbctx.Context, f types.FilterSet) ([]*types.CatalogItem, error) {
	c.filters = append(c.filters, f)
	if c.listErr != nil {
		return nil, c.listErr
	}
	out := []*types.CatalogItem{}
	for _, it := range c.items {
		if it.HasEmbedding() {
			out = append(out, it)
		}
	}
	return out, nil
}

func (c *fakeCatalog) FindByNameLike(_ dbctx.Context, name string) (*types.CatalogItem, error) {
	for _, it := range c.items {
		if strings.Contains(strings.ToLower(it.Name), strings.ToLower(name)) {
			return it, nil
		}
	}
	return nil, nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{items: []*types.CatalogItem{
		{Name: "Avenger Titan", Role: "Light Freight", PriceUSD: f64(70), CrewMin: 1, CargoCapacity: 8, Embedding: types.Embedding{0.9, 0.1}},
		{Name: "Cutlass Black", Role: "Medium Freight", PriceUSD: f64(110), CrewMin: 1, CargoCapacity: 46, Embedding: types.Embedding{0.8, 0.6}},
		{Name: "Freelancer", Role: "Medium Freight", PriceUSD: f64(110), CrewMin: 2, CargoCapacity: 66, Embedding: types.Embedding{1, 0}},
		{Name: "Gladius", Role: "Light Fighter", PriceUSD: f64(90), CrewMin: 1, CargoCapacity: 0, Embedding: types.Embedding{0, 1}},
		{Name: "Constellation Andromeda", Role: "Heavy Gunship", PriceUSD: f64(240), CrewMin: 3, CargoCapacity: 96},
	}}
}

func newTestEngine(emb Embedder, cat CatalogSource) *Engine {
	return NewEngine(EngineDeps{Embedder: emb, Catalog: cat, Config: DefaultConfig(), Constraints: NewConstraintExtractor()})
}

func TestPlanCargoUnderBudget(t *testing.T) {
	e := newTestEngine(nil, nil)
	plan := e.Plan(RetrieveInput{LatestUserText: "I want a cargo ship under $200"})

	assert.Equal(t, []Interest{InterestTrading}, plan.Interests)
	assert.Contains(t, plan.Query, queryTemplates[InterestTrading])
	require.NotNil(t, plan.Filters.PriceMax)
	assert.Equal(t, 200.0, *plan.Filters.PriceMax)
}

func TestPlanExplicitFiltersOverrideExtracted(t *testing.T) {
	e := newTestEngine(nil, nil)
	plan := e.Plan(RetrieveInput{
		LatestUserText: "something under 500",
		Transcript:     []*types.TranscriptTurn{{Content: "I fly solo"}},
		Filters:        types.FilterSet{PriceMax: f64(150)},
	})
	assert.Equal(t, 150.0, *plan.Filters.PriceMax)
	assert.Equal(t, 1, *plan.Filters.CrewMax)
	assert.Equal(t, []string{"budget-500", "solo"}, plan.Rules)
}

func TestRetrieveRanksFiltersAndTruncates(t *testing.T) {
	emb := &fakeEmbedder{def: []float32{1, 0}}
	cat := testCatalog()
	e := newTestEngine(emb, cat)

	results, degraded := e.Retrieve(context.Background(), RetrieveInput{
		LatestUserText: "I fly solo",
		TopK:           2,
	})
	require.False(t, degraded)
	// Freelancer needs two crew; Gladius scores 0.
	names := []string{}
	for _, r := range results {
		names = append(names, r.Item.Name)
	}
	assert.Equal(t, []string{"Avenger Titan", "Cutlass Black"}, names)
	require.Len(t, cat.filters, 1)
	assert.Equal(t, 1, *cat.filters[0].CrewMax)
	assert.Nil(t, cat.filters[0].CargoMin)
}

func TestRetrieveEmptyIsNotDegraded(t *testing.T) {
	e := newTestEngine(&fakeEmbedder{def: []float32{-1, -1}}, testCatalog())
	results, degraded := e.Retrieve(context.Background(), RetrieveInput{LatestUserText: "hi"})
	assert.False(t, degraded)
	assert.Empty(t, results)
}

func TestRetrieveFallsBackOnEmbeddingFailure(t *testing.T) {
	cases := []struct {
		name string
		emb  *fakeEmbedder
		cat  *fakeCatalog
	}{
		{"embed error", &fakeEmbedder{err: errors.New("provider down")}, testCatalog()},
		{"empty vector", &fakeEmbedder{}, testCatalog()},
		{"catalog error", &fakeEmbedder{def: []float32{1, 0}}, &fakeCatalog{items: testCatalog().items, listErr: errors.New("db gone")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(tc.emb, tc.cat)
			results, degraded := e.Retrieve(context.Background(), RetrieveInput{LatestUserText: "combat"})
			require.True(t, degraded)
			require.NotEmpty(t, results)
			assert.LessOrEqual(t, len(results), len(DefaultConfig().Fallback.Ships))
			for _, r := range results {
				assert.Equal(t, 0.7, r.Similarity)
			}
			assert.Len(t, results, 4)
			assert.Equal(t, "Cutlass Black", results[0].Item.Name)
		})
	}
}

func TestFallbackSkipsUnresolvedNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Fallback.Ships = []string{"Gladius", "Hull E", "titan"}
	e := NewEngine(EngineDeps{Embedder: &fakeEmbedder{}, Catalog: testCatalog(), Config: cfg})
	results := e.Fallback(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "Gladius", results[0].Item.Name)
	assert.Equal(t, "Avenger Titan", results[1].Item.Name)
}

func TestHybridSearchBoostsMatchingRoles(t *testing.T) {
	emb := &fakeEmbedder{def: []float32{1, 0.2}}
	e := newTestEngine(emb, testCatalog())
	ctx := context.Background()

	plain, err := e.Search(ctx, "anything", 2, AnySimilarity, types.FilterSet{})
	require.NoError(t, err)
	require.Len(t, plain, 2)
	assert.NotEqual(t, "Gladius", plain[0].Item.Name)

	boosted, err := e.HybridSearch(ctx, "anything", 2, AnySimilarity, types.FilterSet{}, []string{"FIGHTER"})
	require.NoError(t, err)
	require.Len(t, boosted, 2)
	for _, r := range boosted {
		assert.NotEqual(t, "Gladius", r.Item.Name, "0.196+0.1 still ranks below the freight ships")
	}

	boosted, err = e.HybridSearch(ctx, "x", 4, AnySimilarity, types.FilterSet{}, []string{"fighter"})
	require.NoError(t, err)
	require.Len(t, boosted, 4)
	assert.Equal(t, "Gladius", boosted[3].Item.Name)
}

func TestHybridSearchEmbedsRawQueryWithoutExtraction(t *testing.T) {
	emb := &fakeEmbedder{def: []float32{1, 0}}
	cat := testCatalog()
	e := newTestEngine(emb, cat)

	results, err := e.HybridSearch(context.Background(), " solo hauler under 100 ", 5, AnySimilarity, types.FilterSet{}, []string{"freight"})
	require.NoError(t, err)
	assert.Equal(t, []string{"solo hauler under 100"}, emb.calls)
	require.Len(t, cat.filters, 1)
	assert.Equal(t, types.FilterSet{}, cat.filters[0])
	// Cutlass and Freelancer would be cut by the price and crew rules a
	// dialogue turn extracts from the same text.
	assert.Len(t, results, 4)

	_, err = newTestEngine(&fakeEmbedder{err: errors.New("quota")}, cat).
		HybridSearch(context.Background(), "cargo", 5, AnySimilarity, types.FilterSet{}, []string{"freight"})
	require.Error(t, err)
}

func TestRetrieveExplicitZeroThreshold(t *testing.T) {
	e := newTestEngine(&fakeEmbedder{def: []float32{0, 1}}, testCatalog())
	ctx := context.Background()

	byDefault, _ := e.Retrieve(ctx, RetrieveInput{LatestUserText: "hi"})
	assert.Len(t, byDefault, 2, "configured 0.5 keeps Gladius and Cutlass")

	zero, _ := e.Retrieve(ctx, RetrieveInput{LatestUserText: "hi", MinSimilarity: Threshold(0)})
	assert.Len(t, zero, 4)
	assert.Equal(t, "Freelancer", zero[3].Item.Name)
}

func TestBoost(t *testing.T) {
	results := []SearchResult{
		{Item: &types.CatalogItem{Name: "a", Role: "Cargo"}, Similarity: 0.8},
		{Item: &types.CatalogItem{Name: "b", Role: "Light Fighter"}, Similarity: 0.75},
	}
	out := Boost(results, []string{"fighter"}, 0.1)
	assert.Equal(t, "b", out[0].Item.Name)
	assert.InDelta(t, 0.85, out[0].Similarity, 1e-9)
}

func TestSearchSurfacesErrors(t *testing.T) {
	e := newTestEngine(&fakeEmbedder{err: errors.New("boom")}, testCatalog())
	_, err := e.Search(context.Background(), "fighter", 5, 0, types.FilterSet{})
	require.Error(t, err)

	e = newTestEngine(&fakeEmbedder{def: []float32{0, 1}}, testCatalog())
	results, err := e.Search(context.Background(), "", 1, 0.5, types.FilterSet{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Gladius", results[0].Item.Name)
}
