package analysis

import (
	"sort"
	"strings"
	"unicode"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

const (
	reasonMentioned   = "Mentioned in conversation"
	defaultNeedPhrase = "your needs"
)

type mention struct {
	item *types.CatalogItem
	at   int
}

// FindMentions scans text for catalog names, case-insensitively, and returns
// the matched items in order of first occurrence. Longer names are matched
// first and their span is blanked so "Cutlass Black" is not also counted as
// "Cutlass".
func FindMentions(text string, catalog []*types.CatalogItem) []*types.CatalogItem {
	hay := []rune(strings.ToLower(text))
	names := make([]*types.CatalogItem, 0, len(catalog))
	for _, it := range catalog {
		if it != nil && strings.TrimSpace(it.Name) != "" {
			names = append(names, it)
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return len([]rune(names[i].Name)) > len([]rune(names[j].Name))
	})

	seen := map[string]bool{}
	var found []mention
	for _, it := range names {
		key := strings.ToLower(strings.TrimSpace(it.Name))
		if seen[key] {
			continue
		}
		needle := []rune(key)
		first := -1
		for {
			idx := indexRunes(hay, needle)
			if idx < 0 {
				break
			}
			if first < 0 {
				first = idx
			}
			for k := idx; k < idx+len(needle); k++ {
				hay[k] = 0
			}
		}
		if first >= 0 {
			seen[key] = true
			found = append(found, mention{item: it, at: first})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].at < found[j].at })

	out := make([]*types.CatalogItem, 0, len(found))
	for _, m := range found {
		out = append(out, m.item)
	}
	return out
}

// indexRunes finds needle in hay on word boundaries.
func indexRunes(hay, needle []rune) int {
	if len(needle) == 0 || len(needle) > len(hay) {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if hay[i+j] != r {
				continue outer
			}
		}
		if i > 0 && isWordRune(hay[i-1]) {
			continue
		}
		if end := i + len(needle); end < len(hay) && isWordRune(hay[end]) {
			continue
		}
		return i
	}
	return -1
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Placeholders builds records for names the catalog could not resolve. Names
// that match a catalog entry, or repeat an earlier name, are skipped.
func Placeholders(names []string, catalog []*types.CatalogItem, playstyle string) []*types.RecommendationRecord {
	known := make(map[string]bool, len(catalog))
	for _, it := range catalog {
		if it != nil {
			known[strings.ToLower(strings.TrimSpace(it.Name))] = true
		}
	}
	need := strings.TrimSpace(playstyle)
	if need == "" {
		need = defaultNeedPhrase
	}
	out := make([]*types.RecommendationRecord, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		key := strings.ToLower(n)
		if n == "" || known[key] {
			continue
		}
		known[key] = true
		out = append(out, &types.RecommendationRecord{
			DisplayName: n,
			Slug:        Slugify(n),
			Reason:      "Mentioned in conversation as suitable for " + need,
		})
	}
	return out
}

func mentionRecords(items []*types.CatalogItem) []*types.RecommendationRecord {
	out := make([]*types.RecommendationRecord, 0, len(items))
	for _, it := range items {
		id := it.ID
		out = append(out, &types.RecommendationRecord{
			ItemID:       &id,
			DisplayName:  it.Name,
			Manufacturer: it.Manufacturer,
			Role:         it.Role,
			Slug:         it.Slug,
			Reason:       reasonMentioned,
		})
	}
	return out
}

// Slugify lowercases s and joins its alphanumeric runs with "-".
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}
