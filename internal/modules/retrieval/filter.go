package retrieval

import (
	"strings"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

// ApplyFilter keeps the items that satisfy every set field of filters.
// Items without a USD price fail any price bound.
func ApplyFilter(items []*types.CatalogItem, filters types.FilterSet) []*types.CatalogItem {
	out := make([]*types.CatalogItem, 0, len(items))
	for _, it := range items {
		if Matches(it, filters) {
			out = append(out, it)
		}
	}
	return out
}

func Matches(it *types.CatalogItem, f types.FilterSet) bool {
	if it == nil {
		return false
	}
	if f.PriceMax != nil && (it.PriceUSD == nil || *it.PriceUSD > *f.PriceMax) {
		return false
	}
	if f.PriceMin != nil && (it.PriceUSD == nil || *it.PriceUSD < *f.PriceMin) {
		return false
	}
	if f.CargoMin != nil && it.CargoCapacity < *f.CargoMin {
		return false
	}
	if f.CrewMax != nil && it.CrewMin > *f.CrewMax {
		return false
	}
	if f.Manufacturer != nil && !containsFold(it.Manufacturer, *f.Manufacturer) {
		return false
	}
	if f.Role != nil && !containsFold(it.Role, *f.Role) {
		return false
	}
	return true
}

func containsFold(haystack, needle string) bool {
	needle = strings.TrimSpace(needle)
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
