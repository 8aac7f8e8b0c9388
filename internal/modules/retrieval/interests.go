package retrieval

import "strings"

type Interest string

const (
	InterestCombat      Interest = "combat"
	InterestTrading     Interest = "trading"
	InterestExploration Interest = "exploration"
	InterestMining      Interest = "mining"
	InterestMultiRole   Interest = "multi_role"
	InterestSolo        Interest = "solo"
	InterestGroup       Interest = "group"
	InterestStarter     Interest = "starter"
	InterestLuxury      Interest = "luxury"
	InterestStealth     Interest = "stealth"
)

const defaultQuery = "versatile multi-role ship"

type interestGroup struct {
	tag      Interest
	keywords []string
}

// interestGroups are checked in order; the order fixes the order of tags in
// the composed query.
var interestGroups = []interestGroup{
	{InterestCombat, []string{"combat", "fight", "battle", "bounty", "pvp"}},
	{InterestTrading, []string{"trade", "trading", "cargo", "haul", "freight"}},
	{InterestExploration, []string{"explore", "exploration", "discover", "scan"}},
	{InterestMining, []string{"mine", "mining", "ore", "resource"}},
	{InterestMultiRole, []string{"versatile", "multi", "all-around", "everything"}},
	{InterestSolo, []string{"solo", "alone", "single"}},
	{InterestGroup, []string{"crew", "group", "friends", "multi-crew"}},
	{InterestStarter, []string{"starter", "beginner", "first", "new"}},
	{InterestLuxury, []string{"luxury", "fancy", "premium", "nice"}},
}

var queryTemplates = map[Interest]string{
	InterestCombat:      "fast combat ship for dogfighting and bounty hunting",
	InterestTrading:     "cargo hauler for trading and freight transport",
	InterestExploration: "exploration ship with long range and scanning capabilities",
	InterestMining:      "mining ship for resource extraction and ore processing",
	InterestMultiRole:   "versatile multi-role ship for various activities",
	InterestLuxury:      "luxury ship with premium amenities and comfort",
	InterestStealth:     "stealth ship for infiltration and covert operations",
	InterestStarter:     "affordable beginner-friendly starter ship",
	InterestSolo:        "solo-capable ship for single player",
	InterestGroup:       "multi-crew ship for group gameplay",
}

// ExtractInterests tags text by case-insensitive keyword match. It never
// returns an empty slice; text matching nothing yields multi_role.
func ExtractInterests(text string) []Interest {
	lower := strings.ToLower(text)
	out := make([]Interest, 0, 2)
	for _, g := range interestGroups {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, g.tag)
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, InterestMultiRole)
	}
	return out
}

// ComposeQuery joins the template of each interest with spaces. Interests
// without a template contribute their own name.
func ComposeQuery(interests []Interest) string {
	if len(interests) == 0 {
		return defaultQuery
	}
	parts := make([]string, 0, len(interests))
	for _, in := range interests {
		if tpl, ok := queryTemplates[in]; ok {
			parts = append(parts, tpl)
			continue
		}
		parts = append(parts, string(in))
	}
	return strings.Join(parts, " ")
}

// PrimaryPlaystyle is the first non-default interest, or "" when only the
// default fired.
func PrimaryPlaystyle(interests []Interest) string {
	for _, in := range interests {
		if in != InterestMultiRole {
			return string(in)
		}
	}
	return ""
}
