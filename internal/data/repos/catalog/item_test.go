package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/data/repos/testutil"
	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/dbctx"
)

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }
func ptrS(v string) *string   { return &v }

func names(items []*types.CatalogItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestItemRepoListForSearchFilters(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewItemRepo(db, testutil.Logger(t))

	testutil.SeedShip(t, ctx, db, testutil.ShipSpec{Name: "Avenger Titan", Manufacturer: "Aegis Dynamics", Role: "Light Freight", Cargo: 8, CrewMax: 1, Price: 60, Embedding: []float32{1, 0}})
	testutil.SeedShip(t, ctx, db, testutil.ShipSpec{Name: "Freelancer", Manufacturer: "MISC", Role: "Medium Freight", Cargo: 66, CrewMin: 1, CrewMax: 4, Price: 110, Embedding: []float32{0, 1}})
	testutil.SeedShip(t, ctx, db, testutil.ShipSpec{Name: "Cutlass Black", Manufacturer: "Drake Interplanetary", Role: "Medium Fighter", Cargo: 46, CrewMin: 2, CrewMax: 3, Price: 110, Embedding: []float32{1, 1}})
	testutil.SeedShip(t, ctx, db, testutil.ShipSpec{Name: "Unembedded", Manufacturer: "MISC", Role: "Medium Freight", Cargo: 100, Price: 50})

	all, err := repo.ListForSearch(dbc, types.FilterSet{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Avenger Titan", "Cutlass Black", "Freelancer"}, names(all))

	cases := []struct {
		name    string
		filters types.FilterSet
		want    []string
	}{
		{"price max", types.FilterSet{PriceMax: ptrF(100)}, []string{"Avenger Titan"}},
		{"price min", types.FilterSet{PriceMin: ptrF(100)}, []string{"Cutlass Black", "Freelancer"}},
		{"cargo", types.FilterSet{CargoMin: ptrI(20)}, []string{"Cutlass Black", "Freelancer"}},
		{"solo", types.FilterSet{CrewMax: ptrI(1)}, []string{"Avenger Titan", "Freelancer"}},
		{"manufacturer", types.FilterSet{Manufacturer: ptrS("drake")}, []string{"Cutlass Black"}},
		{"role", types.FilterSet{Role: ptrS("FREIGHT")}, []string{"Avenger Titan", "Freelancer"}},
		{"combined", types.FilterSet{PriceMax: ptrF(200), CargoMin: ptrI(20), CrewMax: ptrI(1)}, []string{"Freelancer"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.ListForSearch(dbc, tc.filters)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got))
		})
	}
}

func TestItemRepoLookupsAndEmbeddings(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewItemRepo(db, testutil.Logger(t))

	seeded := testutil.SeedShip(t, ctx, db, testutil.ShipSpec{Name: "Constellation Andromeda", Manufacturer: "RSI", Role: "Heavy Fighter", Price: 240})

	got, err := repo.FindByNameLike(dbc, "andromeda")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, seeded.ID, got.ID)

	missing, err := repo.FindByNameLike(dbc, "Hammerhead")
	require.NoError(t, err)
	assert.Nil(t, missing)

	bySlug, err := repo.GetBySlug(dbc, "constellation-andromeda")
	require.NoError(t, err)
	require.NotNil(t, bySlug)

	pending, err := repo.ListMissingEmbedding(dbc, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.UpdateEmbedding(dbc, seeded.ID, []float32{0.25, 0.5}))
	pending, err = repo.ListMissingEmbedding(dbc, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	reloaded, err := repo.GetByID(dbc, seeded.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Embedding{0.25, 0.5}, reloaded.Embedding)
}

func TestItemRepoUpsertKeepsEmbedding(t *testing.T) {
	db := testutil.SQLite(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewItemRepo(db, testutil.Logger(t))

	testutil.SeedShip(t, ctx, db, testutil.ShipSpec{Name: "Freelancer", Manufacturer: "MISC", Role: "Freight", Price: 110, Embedding: []float32{1, 2}})

	price := 125.0
	err := repo.Upsert(dbc, []*types.CatalogItem{{
		Name:         "Freelancer",
		Slug:         "freelancer",
		Manufacturer: "MISC",
		Role:         "Medium Freight",
		CrewMin:      1,
		CrewMax:      4,
		PriceUSD:     &price,
	}})
	require.NoError(t, err)

	item, err := repo.GetBySlug(dbc, "freelancer")
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Medium Freight", item.Role)
	require.NotNil(t, item.PriceUSD)
	assert.Equal(t, 125.0, *item.PriceUSD)
	assert.Equal(t, types.Embedding{1, 2}, item.Embedding)
}
