package consultant

import (
	"fmt"
	"strconv"
	"strings"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
)

const (
	maxPromptShips       = 6
	maxDescriptionRunes  = 200
	shipReferenceHeading = "[AVAILABLE SHIPS FOR REFERENCE]"
)

const baseSystemPrompt = `You are Nova, a friendly Star Citizen pilot helping someone put together a fleet of up to 5 ships. The conversation may be spoken aloud, so talk naturally.

Keep replies short: two or three sentences, then ask something. No lists, headings or markdown.

Suggest one ship at a time and use its exact name from the reference list when you do. Wait for their reaction before adding it to the fleet. Be honest about a ship's weaknesses and talk about how it plays, not just its specs.

Ships can be bought with USD pledges or in-game aUEC. Mention the price when it helps them decide.`

const refinementAddendum = `They already have ships in their fleet. Recap it when useful, suggest ships that complement what they picked, compare options they are torn between and keep count so the fleet stays at 5 or fewer.`

const completionAddendum = `They are happy with their fleet. Recap each ship and why it fits them, tell them a fleet guide and the conversation transcript are coming by email, then say goodbye. Keep it brief and casual.`

// SystemPrompt is the system instruction for phase.
func SystemPrompt(phase Phase) string {
	switch phase {
	case PhaseCompletion:
		return baseSystemPrompt + "\n\n" + completionAddendum
	case PhaseRefinement:
		return baseSystemPrompt + "\n\n" + refinementAddendum
	default:
		return baseSystemPrompt
	}
}

// BuildMessages replays the transcript and appends the current user text,
// carrying up to maxPromptShips candidates when the phase retrieves.
func BuildMessages(transcript []*types.TranscriptTurn, text string, candidates []*types.CatalogItem, phase Phase) []Message {
	out := make([]Message, 0, len(transcript)+1)
	for _, t := range transcript {
		if t == nil {
			continue
		}
		out = append(out, Message{Role: t.Role, Content: t.Content})
	}
	content := text
	if len(candidates) > 0 && phase.WantsRetrieval() {
		content = text + "\n\n" + shipReferenceHeading + "\n" + FormatShips(candidates, maxPromptShips)
	}
	return append(out, Message{Role: types.RoleUser, Content: content})
}

// FormatShips renders numbered ship cards separated by blank lines.
func FormatShips(items []*types.CatalogItem, max int) string {
	if len(items) == 0 {
		return "No ships found matching criteria."
	}
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	parts := make([]string, 0, len(items))
	for i, it := range items {
		parts = append(parts, fmt.Sprintf("%d. %s\n", i+1, formatShip(it)))
	}
	return strings.Join(parts, "\n")
}

func formatShip(it *types.CatalogItem) string {
	role := it.Role
	if role == "" {
		role = "Unknown"
	}
	lines := []string{
		fmt.Sprintf("**%s** (%s)", it.Name, it.Manufacturer),
		"Role: " + role,
		fmt.Sprintf("Cargo: %d SCU | Crew: %d-%d", it.CargoCapacity, it.CrewMin, it.CrewMax),
	}
	if it.PriceUSD != nil && *it.PriceUSD > 0 {
		lines = append(lines, "Price: $"+strconv.FormatFloat(*it.PriceUSD, 'f', -1, 64)+" USD")
	}
	if it.PriceAUEC != nil && *it.PriceAUEC > 0 {
		lines = append(lines, "In-game: "+groupThousands(*it.PriceAUEC)+" aUEC")
	}
	if it.Description != "" {
		lines = append(lines, "Description: "+truncateRunes(it.Description, maxDescriptionRunes)+"...")
	}
	return strings.Join(lines, "\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, ch := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
