package documents

import (
	"fmt"
	"sort"
	"strings"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

// FleetEntry pairs a ledger record with the catalog item it points at. Item is
// nil for placeholder records.
type FleetEntry struct {
	Record *types.RecommendationRecord
	Item   *types.CatalogItem
}

func (e FleetEntry) Name() string {
	if e.Record != nil && e.Record.DisplayName != "" {
		return e.Record.DisplayName
	}
	if e.Item != nil {
		return e.Item.Name
	}
	return ""
}

func (e FleetEntry) Role() string {
	if e.Item != nil && e.Item.Role != "" {
		return e.Item.Role
	}
	if e.Record != nil {
		return e.Record.Role
	}
	return ""
}

func (e FleetEntry) Manufacturer() string {
	if e.Item != nil && e.Item.Manufacturer != "" {
		return e.Item.Manufacturer
	}
	if e.Record != nil {
		return e.Record.Manufacturer
	}
	return ""
}

// PriceLabel is "$110" style, or "TBA" when the price is unknown.
func (e FleetEntry) PriceLabel() string {
	if e.Item == nil || e.Item.PriceUSD == nil {
		return "TBA"
	}
	return "$" + groupThousands(int64(*e.Item.PriceUSD))
}

const emptyFleetSummary = "No ships recommended yet. Continue your conversation with Nova to get personalized recommendations!"

// FleetSummary is the short prose analysis printed above the ship cards.
func FleetSummary(entries []FleetEntry) string {
	if len(entries) == 0 {
		return emptyFleetSummary
	}
	names := make([]string, 0, len(entries))
	roles := map[string]bool{}
	solo, crew, cargo := 0, 0, 0
	for _, e := range entries {
		names = append(names, e.Name())
		if r := strings.TrimSpace(e.Role()); r != "" {
			roles[r] = true
		}
		if e.Item == nil {
			continue
		}
		if e.Item.CrewMin <= 1 {
			solo++
		}
		crew += e.Item.CrewMax
		cargo += e.Item.CargoCapacity
	}

	plural := "s"
	if len(entries) == 1 {
		plural = ""
	}
	parts := []string{fmt.Sprintf("Your recommended fleet consists of %d ship%s: %s.", len(entries), plural, strings.Join(names, ", "))}
	switch len(roles) {
	case 0:
	case 1:
		for r := range roles {
			parts = append(parts, fmt.Sprintf("This focused fleet specializes in %s, perfect for dedicated operations.", r))
		}
	default:
		parts = append(parts, fmt.Sprintf("This fleet provides versatility across %d different roles, giving you flexibility in gameplay.", len(roles)))
	}
	if solo > 0 {
		parts = append(parts, fmt.Sprintf("%d of these ships can be operated solo, ideal for independent gameplay.", solo))
	}
	if crew > 5 {
		parts = append(parts, fmt.Sprintf("For multi-crew operations, this fleet supports up to %d players simultaneously.", crew))
	}
	if cargo > 0 {
		parts = append(parts, fmt.Sprintf("Combined cargo capacity: %s SCU for trading and logistics operations.", groupThousands(int64(cargo))))
	}
	return strings.Join(parts, " ")
}

// NextSteps lists follow-ups, led by the cheapest priced ship when there is one.
func NextSteps(entries []FleetEntry) []string {
	steps := []string{
		"Visit the RSI Pledge Store to purchase these ships",
		"Join the Star Citizen community on Spectrum to connect with other players",
		"Watch ship review videos to see these ships in action",
		"Consider starting with the most affordable ship and upgrading later",
	}
	priced := make([]FleetEntry, 0, len(entries))
	for _, e := range entries {
		if e.Item != nil && e.Item.PriceUSD != nil {
			priced = append(priced, e)
		}
	}
	if len(priced) == 0 {
		return steps
	}
	sort.SliceStable(priced, func(i, j int) bool { return *priced[i].Item.PriceUSD < *priced[j].Item.PriceUSD })
	first := fmt.Sprintf("Start with the %s (%s) as your entry ship", priced[0].Name(), priced[0].PriceLabel())
	return append([]string{first}, steps...)
}

func groupThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
