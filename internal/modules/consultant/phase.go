package consultant

import "strings"

type Phase string

const (
	PhaseGreeting       Phase = "greeting"
	PhaseDiscovery      Phase = "discovery"
	PhaseRecommendation Phase = "recommendation"
	PhaseRefinement     Phase = "refinement"
	PhaseCompletion     Phase = "completion"
)

// discoveryTurns is the turn count below which the consultant keeps asking
// questions instead of recommending.
const discoveryTurns = 4

var closingPhrases = []string{
	"thanks", "thank you", "sounds good", "i'll take", "perfect",
	"that's all", "appreciate it", "helpful", "great", "awesome",
}

// ClassifyPhase picks the phase of the turn being processed. turnCount is the
// position the incoming message takes in the transcript, so 1 for an opening
// message.
//
// Precedence: a closing phrase after recommendations completes; the first turn
// greets; any recommendations mean refinement; otherwise discovery until
// discoveryTurns, then recommendation.
func ClassifyPhase(turnCount int, hasRecommendations bool, latestUserText string) Phase {
	if hasRecommendations && isClosing(latestUserText) {
		return PhaseCompletion
	}
	if turnCount == 1 {
		return PhaseGreeting
	}
	if hasRecommendations {
		return PhaseRefinement
	}
	if turnCount < discoveryTurns {
		return PhaseDiscovery
	}
	return PhaseRecommendation
}

func isClosing(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range closingPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// WantsRetrieval reports whether the phase consults the catalog.
func (p Phase) WantsRetrieval() bool {
	return p == PhaseRecommendation || p == PhaseRefinement
}
