package analysis

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

func ship(name, role string) *types.CatalogItem {
	return &types.CatalogItem{ID: uuid.New(), Name: name, Slug: Slugify(name), Role: role, Manufacturer: "RSI"}
}

func names(items []*types.CatalogItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestFindMentionsPrefersLongestNames(t *testing.T) {
	catalog := []*types.CatalogItem{
		ship("Cutlass", "Multi-role"),
		ship("Cutlass Black", "Medium Fighter"),
		ship("Prospector", "Mining"),
		ship("Aurora MR", "Starter"),
	}
	text := "For mining I'd start with the prospector. The Cutlass Black is a great all-rounder, and the cutlass black again."

	got := FindMentions(text, catalog)
	assert.Equal(t, []string{"Prospector", "Cutlass Black"}, names(got))
}

func TestFindMentionsOrdersByFirstOccurrence(t *testing.T) {
	catalog := []*types.CatalogItem{ship("Gladius", "Fighter"), ship("Freelancer", "Cargo"), ship("C2 Hercules", "Cargo")}
	got := FindMentions("freelancer first, then the C2 Hercules, then a Gladius, then freelancer again", catalog)
	assert.Equal(t, []string{"Freelancer", "C2 Hercules", "Gladius"}, names(got))
}

func TestFindMentionsRespectsWordBoundaries(t *testing.T) {
	catalog := []*types.CatalogItem{ship("Nox", "Racing"), ship("Reliant", "Starter")}
	assert.Empty(t, FindMentions("the noxious fumes of an unreliant engine", catalog))
	assert.Len(t, FindMentions("A Nox, or a Reliant.", catalog), 2)
}

func TestPlaceholdersSkipKnownAndDuplicateNames(t *testing.T) {
	catalog := []*types.CatalogItem{ship("Avenger Titan", "Starter")}
	recs := Placeholders([]string{"avenger titan", "Polaris", " polaris ", "", "Idris-P"}, catalog, "")
	require.Len(t, recs, 2)

	assert.Equal(t, "Polaris", recs[0].DisplayName)
	assert.Equal(t, "polaris", recs[0].Slug)
	assert.True(t, recs[0].IsPlaceholder())
	assert.Equal(t, "Mentioned in conversation as suitable for your needs", recs[0].Reason)
	assert.Equal(t, "idris-p", recs[1].Slug)

	withStyle := Placeholders([]string{"Polaris"}, nil, "combat")
	assert.Equal(t, "Mentioned in conversation as suitable for combat", withStyle[0].Reason)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Cutlass Black":       "cutlass-black",
		"  C2 Hercules  ":     "c2-hercules",
		"Mercury Star Runner": "mercury-star-runner",
		"600i (Explorer)":     "600i-explorer",
		"":                    "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}
