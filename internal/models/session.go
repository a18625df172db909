// Package models defines session state structures for CopilotRelay conversations.
package models

import "time"

// Role identifies the speaker of a conversation turn.
type Role string

const (
	// RoleUser marks a message written by the WhatsApp user.
	RoleUser Role = "user"
	// RoleBot marks a reply produced by the AI backend.
	RoleBot Role = "bot"
)

// Turn is one message in a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NotificationFrequency is how often a user wants proactive messages.
type NotificationFrequency string

const (
	NotificationDaily   NotificationFrequency = "daily"
	NotificationWeekly  NotificationFrequency = "weekly"
	NotificationMonthly NotificationFrequency = "monthly"
)

// IsValidNotificationFrequency checks if the given frequency is supported.
func IsValidNotificationFrequency(f NotificationFrequency) bool {
	switch f {
	case NotificationDaily, NotificationWeekly, NotificationMonthly:
		return true
	default:
		return false
	}
}

// Preferences holds optional per-user settings. Empty fields are unset.
type Preferences struct {
	Language              string                `json:"language,omitempty"`
	NotificationFrequency NotificationFrequency `json:"notification_frequency,omitempty"`
}

// FeedbackEntry is one piece of free-text feedback left by a user.
type FeedbackEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Text      string    `json:"text"`
}

// UserSession is the process-local state kept per sender phone number. It is created on the
// first inbound message and lives for the lifetime of the process.
type UserSession struct {
	ID                    string          `json:"id"`
	LastInteractionAt     time.Time       `json:"last_interaction_at"`
	MessageCount          int             `json:"message_count"`
	ConversationStartedAt time.Time       `json:"conversation_started_at"`
	History               []Turn          `json:"history,omitempty"`
	Preferences           Preferences     `json:"preferences"`
	FeedbackLog           []FeedbackEntry `json:"feedback_log,omitempty"`
}

// Clone returns a deep copy so callers can read a session without holding the store lock.
func (s UserSession) Clone() UserSession {
	out := s
	if s.History != nil {
		out.History = append([]Turn(nil), s.History...)
	}
	if s.FeedbackLog != nil {
		out.FeedbackLog = append([]FeedbackEntry(nil), s.FeedbackLog...)
	}
	return out
}

// IdleFor returns how long the session has been inactive as of now.
func (s UserSession) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastInteractionAt)
}
