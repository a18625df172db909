package flow

import (
	"fmt"
	"strings"
	"testing"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestIsEndOfConversation(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"thank you so much", true},
		{"no thanks needed", true},
		{"bye", true},
		{"that's all for today", true},
		{"no more questions", true},
		{"weekend plans", true},
		{"what should i eat?", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEndOfConversation(tt.text))
		})
	}
}

func TestFeedbackPayload(t *testing.T) {
	assert.Equal(t, "great", FeedbackPayload("feedback: great"))
	assert.Equal(t, "Great Job", FeedbackPayload("Feedback:Great Job "))
	assert.Equal(t, "", FeedbackPayload("feedback:"))
	assert.Equal(t, "", FeedbackPayload("feed"))
	assert.Equal(t, "", FeedbackPayload("not feedback: x"))
}

func TestFormatPreferences(t *testing.T) {
	out := FormatPreferences(models.Preferences{})
	assert.True(t, strings.HasPrefix(out, "Here are your current preferences:\nLanguage: Not set\nNotification frequency: Not set\n\n"))
	assert.True(t, strings.HasSuffix(out, "preferences: language=<your language>, notifications=<daily/weekly/monthly>"))

	out = FormatPreferences(models.Preferences{Language: "English", NotificationFrequency: models.NotificationDaily})
	assert.Contains(t, out, "Language: English\nNotification frequency: daily\n")

	out = FormatPreferences(models.Preferences{NotificationFrequency: "hourly"})
	assert.Contains(t, out, "Notification frequency: Not set\n", "unsupported frequencies are not echoed back")
}

func TestSummarize(t *testing.T) {
	assert.Equal(t, EmptySummaryMessage, Summarize(nil))

	var history []models.Turn
	for i := 1; i <= 6; i++ {
		history = append(history,
			models.Turn{Role: models.RoleUser, Content: fmt.Sprintf("q%d", i)},
			models.Turn{Role: models.RoleBot, Content: fmt.Sprintf("a%d", i)},
		)
	}
	out := Summarize(history)
	assert.True(t, strings.HasPrefix(out, SummaryHeader+"You: q2\nMe: a2\n\n"))
	assert.True(t, strings.HasSuffix(out, "You: q6\nMe: a6"))
	assert.Equal(t, 5, strings.Count(out, "You: "))
}

func TestSummarizeMissingReply(t *testing.T) {
	history := []models.Turn{
		{Role: models.RoleUser, Content: "q1"},
		{Role: models.RoleBot, Content: "a1"},
		{Role: models.RoleUser, Content: "q2"},
	}
	assert.Equal(t, SummaryHeader+"You: q1\nMe: a1\n\nYou: q2\nMe: "+MissingReply, Summarize(history))
}

func TestRandomTipUsesPicker(t *testing.T) {
	d := &Dispatcher{pick: func(n int) int { return n - 1 }}
	assert.Equal(t, TipPrefix+Tips[len(Tips)-1], d.randomTip())
}
