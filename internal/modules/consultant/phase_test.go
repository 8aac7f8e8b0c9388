package consultant

import "testing"

func TestClassifyPhase(t *testing.T) {
	cases := []struct {
		name      string
		turnCount int
		hasRecs   bool
		text      string
		want      Phase
	}{
		{"opening message greets", 1, false, "hi", PhaseGreeting},
		{"early turns discover", 3, false, "x", PhaseDiscovery},
		{"fourth position recommends", 4, false, "x", PhaseRecommendation},
		{"late turns recommend", 9, false, "thanks", PhaseRecommendation},
		{"closing phrase after recs completes", 5, true, "thanks so much", PhaseCompletion},
		{"closing phrase is case-insensitive", 2, true, "That's All, AWESOME", PhaseCompletion},
		{"closing beats greeting", 1, true, "perfect", PhaseCompletion},
		{"recs without closing refine", 7, true, "what about mining?", PhaseRefinement},
		{"first turn with recs greets", 1, true, "hello", PhaseGreeting},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyPhase(tc.turnCount, tc.hasRecs, tc.text); got != tc.want {
				t.Fatalf("ClassifyPhase(%d, %v, %q) = %s, want %s", tc.turnCount, tc.hasRecs, tc.text, got, tc.want)
			}
		})
	}
}

func TestPhaseWantsRetrieval(t *testing.T) {
	want := map[Phase]bool{
		PhaseGreeting:       false,
		PhaseDiscovery:      false,
		PhaseRecommendation: true,
		PhaseRefinement:     true,
		PhaseCompletion:     false,
	}
	for p, w := range want {
		if p.WantsRetrieval() != w {
			t.Fatalf("%s.WantsRetrieval() = %v", p, !w)
		}
	}
}
