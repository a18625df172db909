package models

// Fixed natural-language apologies. User-visible failures are always one of these, never a
// structured error code.
const (
	// SupportContact is the human support line named in apologies.
	SupportContact = "+254708419386"

	// HighDemandApology is used when the AI backend is unreachable or fails.
	HighDemandApology = "I apologize, but our systems are currently experiencing high demand. Please try again in a few moments. If the issue persists, feel free to contact our support team here: " + SupportContact
	// RephraseApology is used when the AI backend answers without usable text.
	RephraseApology = "I apologize, but I couldn't process your request at the moment. Could you please try rephrasing your question?"
	// GenericApology is used when dispatch hits an unexpected fault.
	GenericApology = "I apologize, but I encountered an unexpected issue. Please try again in a moment, and if the problem persists, don't hesitate to contact our support team here: " + SupportContact
)

// IsFallbackAnswer reports whether text is one of the apologies an AI backend substitutes for a
// real answer. Such answers are relayed but not recorded as conversation history.
func IsFallbackAnswer(text string) bool {
	return text == HighDemandApology || text == RephraseApology
}
