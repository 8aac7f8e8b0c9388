package documents

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	domainagg "github.com/Kcheesee/StarCitiSalesAgent/internal/domain/aggregates"
)

const (
	transcriptTimeLayout = "January 2, 2006 at 3:04 PM"
	turnTimeLayout       = "15:04:05"
	assistantLabel       = "Nova"
	userLabel            = "You"
)

// RenderTranscript writes the conversation as plain text: a header block, the
// turns in seq order with their times, and the final fleet.
func RenderTranscript(snap *domainagg.ConversationSnapshot, generatedAt time.Time) []byte {
	var b bytes.Buffer
	conv := snap.Conversation

	b.WriteString("StarCiti Sales Agent\n")
	b.WriteString("Conversation Transcript\n")
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	fmt.Fprintf(&b, "Conversation: %s\n", conv.ID)
	fmt.Fprintf(&b, "Started:      %s\n", conv.StartedAt.UTC().Format(transcriptTimeLayout))
	if conv.CompletedAt != nil {
		fmt.Fprintf(&b, "Completed:    %s\n", conv.CompletedAt.UTC().Format(transcriptTimeLayout))
	} else {
		b.WriteString("Completed:    In Progress\n")
	}
	if name := strOr(conv.ContactName, ""); name != "" {
		fmt.Fprintf(&b, "Customer:     %s\n", name)
	}
	fmt.Fprintf(&b, "Messages:     %d\n", len(snap.Transcript))

	b.WriteString("\nConversation History\n")
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, t := range snap.Transcript {
		label := assistantLabel
		if t.Role == types.RoleUser {
			label = userLabel
		}
		fmt.Fprintf(&b, "\n[%s] %s:\n", t.CreatedAt.UTC().Format(turnTimeLayout), label)
		for _, line := range strings.Split(strings.TrimSpace(t.Content), "\n") {
			b.WriteString("  " + line + "\n")
		}
	}

	if len(snap.Recommendations) > 0 {
		b.WriteString("\nRecommended Ships\n")
		b.WriteString(strings.Repeat("-", 60) + "\n")
		for _, r := range snap.Recommendations {
			fmt.Fprintf(&b, "%d. %s", r.Priority, r.DisplayName)
			if r.Manufacturer != "" {
				fmt.Fprintf(&b, " (%s)", r.Manufacturer)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nGenerated on %s\n", generatedAt.UTC().Format(transcriptTimeLayout))
	b.WriteString("StarCiti Sales Agent - Your AI-Powered Ship Consultant\n")
	return b.Bytes()
}

func strOr(p *string, def string) string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return def
	}
	return strings.TrimSpace(*p)
}
