package flow

import (
	"strings"

	"github.com/BTreeMap/CopilotRelay/internal/models"
)

const (
	// SummaryHeader opens every non-empty summary.
	SummaryHeader = "Here's a summary of our conversation:\n\n"
	// EmptySummaryMessage is sent when there is no history yet.
	EmptySummaryMessage = "We haven't had any conversation yet. Feel free to ask me anything!"
	// MissingReply stands in for a bot turn that was never recorded.
	MissingReply = "No response"
	// SummaryPairs is how many of the most recent exchanges a summary covers.
	SummaryPairs = 5
)

// Summarize renders the last SummaryPairs user/bot exchanges of history.
func Summarize(history []models.Turn) string {
	if len(history) == 0 {
		return EmptySummaryMessage
	}

	start := max(0, len(history)-2*SummaryPairs)
	var b strings.Builder
	b.WriteString(SummaryHeader)
	for i := start; i < len(history); i += 2 {
		reply := MissingReply
		if i+1 < len(history) {
			reply = history[i+1].Content
		}
		b.WriteString("You: ")
		b.WriteString(history[i].Content)
		b.WriteString("\nMe: ")
		b.WriteString(reply)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
