package consultant

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
)

const (
	// maxCandidatesPerTurn bounds how many retrieved ships a single reply can
	// add to the fleet.
	maxCandidatesPerTurn = 4
	defaultInterest      = "versatile gameplay"
)

// AcceptanceDetector decides whether a reply took up a candidate.
type AcceptanceDetector interface {
	Accepted(reply string, candidate *types.CatalogItem) bool
}

// SubstringDetector accepts a candidate whose exact display name appears in the
// reply. Matching is case sensitive.
type SubstringDetector struct{}

func (SubstringDetector) Accepted(reply string, candidate *types.CatalogItem) bool {
	if candidate == nil || candidate.Name == "" {
		return false
	}
	return strings.Contains(reply, candidate.Name)
}

// Ledger turns accepted candidates into recommendation records and rewrites
// whole ledgers. The same item may be accepted on several turns; records are
// not deduplicated across turns.
type Ledger struct {
	Detector AcceptanceDetector
	Store    Store
	Now      func() time.Time
}

func NewLedger(store Store, detector AcceptanceDetector) *Ledger {
	if detector == nil {
		detector = SubstringDetector{}
	}
	return &Ledger{Detector: detector, Store: store, Now: time.Now}
}

// Accept returns the records to append for one turn, in ranked order. Only the
// first maxCandidatesPerTurn candidates are considered and the batch is cut so
// the ledger never exceeds types.MaxRecommendations.
func (l *Ledger) Accept(existingCount int, candidates []*types.CatalogItem, reply string) []*types.RecommendationRecord {
	room := types.MaxRecommendations - existingCount
	if room <= 0 {
		return []*types.RecommendationRecord{}
	}
	if len(candidates) > maxCandidatesPerTurn {
		candidates = candidates[:maxCandidatesPerTurn]
	}
	detector := l.detector()
	out := make([]*types.RecommendationRecord, 0, len(candidates))
	for _, c := range candidates {
		if !detector.Accepted(reply, c) {
			continue
		}
		if len(out) == room {
			break
		}
		out = append(out, recordFor(c, existingCount+len(out)+1))
	}
	return out
}

// Replace overwrites the ledger of conversationID with records, renumbered
// 1..n and cut to types.MaxRecommendations.
func (l *Ledger) Replace(ctx context.Context, conversationID uuid.UUID, records []*types.RecommendationRecord) (*domainagg.ConversationSnapshot, error) {
	in := domainagg.ReplaceRecommendationsInput{
		ConversationID:  conversationID,
		Recommendations: ToInputs(Renumber(records)),
		EventAt:         l.now(),
	}
	snap, err := l.Store.ReplaceRecommendations(ctx, in)
	if err != nil {
		return nil, TranslateStoreError(err)
	}
	return snap, nil
}

// Renumber drops nil records, keeps at most types.MaxRecommendations and
// assigns priorities from 1.
func Renumber(records []*types.RecommendationRecord) []*types.RecommendationRecord {
	out := make([]*types.RecommendationRecord, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		if len(out) == types.MaxRecommendations {
			break
		}
		cp := *r
		cp.Priority = len(out) + 1
		out = append(out, &cp)
	}
	return out
}

// ToInputs converts records into aggregate inputs, keeping their priorities.
func ToInputs(records []*types.RecommendationRecord) []domainagg.RecommendationInput {
	out := make([]domainagg.RecommendationInput, 0, len(records))
	for _, r := range records {
		out = append(out, domainagg.RecommendationInput{
			ItemID:       r.ItemID,
			DisplayName:  r.DisplayName,
			Manufacturer: r.Manufacturer,
			Role:         r.Role,
			Slug:         r.Slug,
			Priority:     r.Priority,
			Reason:       r.Reason,
		})
	}
	return out
}

// ReasonFor is the stock reason attached to an accepted recommendation.
func ReasonFor(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		role = defaultInterest
	}
	return "Matches user's interest in " + role
}

func recordFor(it *types.CatalogItem, priority int) *types.RecommendationRecord {
	id := it.ID
	return &types.RecommendationRecord{
		ItemID:       &id,
		DisplayName:  it.Name,
		Manufacturer: it.Manufacturer,
		Role:         it.Role,
		Slug:         it.Slug,
		Priority:     priority,
		Reason:       ReasonFor(it.Role),
	}
}

func (l *Ledger) detector() AcceptanceDetector {
	if l == nil || l.Detector == nil {
		return SubstringDetector{}
	}
	return l.Detector
}

func (l *Ledger) now() time.Time {
	if l == nil || l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}
