package retrieval

import (
	"math"
	"sort"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

// SearchResult pairs a catalog item with its similarity to the query.
// Similarity spans the full cosine range [-1, 1].
type SearchResult struct {
	Item       *types.CatalogItem `json:"ship"`
	Similarity float64            `json:"similarity_score"`
}

// CosineSimilarity returns dot(a,b)/(|a||b|). Empty, mismatched or zero-norm
// vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every candidate against query and sorts descending. Equal
// scores keep their input order.
func Rank(query []float32, candidates []*types.CatalogItem) []SearchResult {
	out := make([]SearchResult, 0, len(candidates))
	for _, it := range candidates {
		if it == nil {
			continue
		}
		out = append(out, SearchResult{Item: it, Similarity: CosineSimilarity(query, it.Embedding)})
	}
	sortResults(out)
	return out
}

func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
}

func cutoff(results []SearchResult, minSimilarity float64, topK int) []SearchResult {
	kept := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Similarity >= minSimilarity {
			kept = append(kept, r)
		}
	}
	if topK > 0 && len(kept) > topK {
		kept = kept[:topK]
	}
	return kept
}

// Items unwraps the catalog items of results, preserving order.
func Items(results []SearchResult) []*types.CatalogItem {
	out := make([]*types.CatalogItem, 0, len(results))
	for _, r := range results {
		out = append(out, r.Item)
	}
	return out
}
