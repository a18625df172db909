package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/CopilotRelay/internal/models"
)

// HelpMessage lists what the assistant can do.
const HelpMessage = "Here are some ways I can support your mental health journey: 🌟\n" +
	"1. Ask me any question about mental health, wellness, or self-care. 🧠💆‍♀️\n" +
	"2. Say 'feedback: your message' to share your thoughts on our interaction. 📝\n" +
	"3. Say 'summary' to get a recap of our conversation. 📚\n" +
	"4. Say 'preferences' to personalize your chat experience. ⚙️\n" +
	"5. Say 'tip' to get a random mental health tip. 💡\n" +
	"6. Share images or videos related to your mental health journey. 🖼️\n" +
	"Remember, I'm here to support you, so don't hesitate to reach out! 🤗"

// FeedbackThanksMessage acknowledges a feedback command.
const FeedbackThanksMessage = "Thank you for your valuable feedback! We greatly appreciate your input as it helps us improve our service."

// EndOfConversationMessage invites the user to a survey when they sign off.
const EndOfConversationMessage = "would you mind taking a quick survey to help us improve? Just reply with 'yes' if you're interested."

// NotSet is shown for preferences the user never provided.
const NotSet = "Not set"

const feedbackPrefix = "feedback:"

// EndKeywords are matched as substrings of the lower-cased message.
var EndKeywords = []string{
	"thank you",
	"thanks",
	"bye",
	"goodbye",
	"that's all",
	"no more questions",
	"end",
}

// IsEndOfConversation reports whether lower contains any end keyword. lower must already be
// lower-cased.
func IsEndOfConversation(lower string) bool {
	for _, kw := range EndKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// hasFeedbackPrefix matches "feedback:" case-insensitively at the start of text.
func hasFeedbackPrefix(text string) bool {
	return len(text) >= len(feedbackPrefix) && strings.EqualFold(text[:len(feedbackPrefix)], feedbackPrefix)
}

// FeedbackPayload returns the text after the "feedback:" prefix, trimmed.
func FeedbackPayload(text string) string {
	if !hasFeedbackPrefix(text) {
		return ""
	}
	return strings.TrimSpace(text[len(feedbackPrefix):])
}

func (d *Dispatcher) handleFeedback(ctx context.Context, from, text string) models.Result {
	payload := FeedbackPayload(text)
	d.store.AddFeedback(from, payload, d.now())
	slog.Info("Dispatcher.handleFeedback: feedback recorded", "from", from, "length", len(payload))
	return d.reply(ctx, from, FeedbackThanksMessage)
}

// FormatPreferences renders the user's stored preferences and how to change them.
func FormatPreferences(p models.Preferences) string {
	language := p.Language
	if language == "" {
		language = NotSet
	}
	frequency := NotSet
	if models.IsValidNotificationFrequency(p.NotificationFrequency) {
		frequency = string(p.NotificationFrequency)
	}
	return fmt.Sprintf("Here are your current preferences:\n"+
		"Language: %s\n"+
		"Notification frequency: %s\n\n"+
		"To update your preferences, please reply with:\n"+
		"preferences: language=<your language>, notifications=<daily/weekly/monthly>", language, frequency)
}
