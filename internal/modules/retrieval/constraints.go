package retrieval

import (
	"strings"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

const (
	groupBudget = "budget"
	groupCrew   = "crew"
	groupCargo  = "cargo"

	nominalCargoMin = 20
)

// ConstraintRule sets filter fields when any of its phrases occurs in the
// lower-cased dialogue. Only the first matching rule of a group applies.
type ConstraintRule struct {
	Name    string
	Group   string
	Phrases []string
	Apply   func(f *types.FilterSet)
}

func (r ConstraintRule) matches(lower string) bool {
	for _, p := range r.Phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func priceMax(v float64) func(*types.FilterSet) {
	return func(f *types.FilterSet) { f.PriceMax = &v }
}

// DefaultConstraintRules in evaluation order. Budget thresholds ascend so the
// tightest stated ceiling wins.
var DefaultConstraintRules = []ConstraintRule{
	{Name: "budget-100", Group: groupBudget, Phrases: []string{"under 100", "< 100", "less than 100"}, Apply: priceMax(100)},
	{Name: "budget-200", Group: groupBudget, Phrases: []string{"under 200", "< 200", "under $200"}, Apply: priceMax(200)},
	{Name: "budget-500", Group: groupBudget, Phrases: []string{"under 500", "< 500"}, Apply: priceMax(500)},
	{Name: "solo", Group: groupCrew, Phrases: []string{"solo", "alone", "single player"}, Apply: func(f *types.FilterSet) {
		one := 1
		f.CrewMax = &one
	}},
	{Name: "cargo", Group: groupCargo, Phrases: []string{"cargo", "haul"}, Apply: func(f *types.FilterSet) {
		floor := nominalCargoMin
		f.CargoMin = &floor
	}},
}

type ConstraintExtractor struct {
	Rules []ConstraintRule
}

func NewConstraintExtractor() ConstraintExtractor {
	return ConstraintExtractor{Rules: DefaultConstraintRules}
}

// Extract never fails; text without signals yields an empty FilterSet.
func (e ConstraintExtractor) Extract(text string) types.FilterSet {
	out, _ := e.ExtractWithRules(text)
	return out
}

// ExtractWithRules also reports the names of the rules that fired.
func (e ConstraintExtractor) ExtractWithRules(text string) (types.FilterSet, []string) {
	rules := e.Rules
	if rules == nil {
		rules = DefaultConstraintRules
	}
	lower := strings.ToLower(text)
	var out types.FilterSet
	fired := []string{}
	done := map[string]bool{}
	for _, r := range rules {
		if r.Group != "" && done[r.Group] {
			continue
		}
		if !r.matches(lower) {
			continue
		}
		if r.Apply != nil {
			r.Apply(&out)
		}
		fired = append(fired, r.Name)
		if r.Group != "" {
			done[r.Group] = true
		}
	}
	return out, fired
}

// DialogueText joins prior turn contents and the latest user text, the input
// the extractor scans.
func DialogueText(transcript []*types.TranscriptTurn, latest string) string {
	parts := make([]string, 0, len(transcript)+1)
	for _, t := range transcript {
		if t != nil {
			parts = append(parts, t.Content)
		}
	}
	if latest != "" {
		parts = append(parts, latest)
	}
	return strings.Join(parts, " ")
}
