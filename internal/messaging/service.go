// Package messaging provides the outbound delivery boundary for CopilotRelay.
//
// Providers implement Sender and return errors. Messenger wraps a Sender and turns every
// failure into a SendResult that callers are free to ignore, so a failed WhatsApp send never
// changes the response already computed for the webhook caller.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"
)

// phoneNumberRegex matches every non-digit character.
var phoneNumberRegex = regexp.MustCompile(`\D`)

// MinRecipientDigits is the shortest accepted phone number after canonicalization.
const MinRecipientDigits = 6

// ErrEmptyRecipient is returned when no recipient is given.
var ErrEmptyRecipient = errors.New("recipient cannot be empty")

// Sender delivers a text message to a recipient through a concrete provider.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// SendResult records the outcome of one fire-and-forget send.
type SendResult struct {
	To       string
	Err      error
	Duration time.Duration
}

// OK reports whether the provider accepted the message.
func (r SendResult) OK() bool {
	return r.Err == nil
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
// It removes all non-numeric characters and validates the result has at least 6 digits.
func ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", ErrEmptyRecipient
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < MinRecipientDigits {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum %d digits required)", canonical, MinRecipientDigits)
	}

	if recipient != canonical {
		slog.Debug("Messenger canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// Messenger is the fire-and-forget wrapper around a Sender.
type Messenger struct {
	sender Sender
}

// NewMessenger creates a Messenger delivering through sender.
func NewMessenger(sender Sender) *Messenger {
	return &Messenger{sender: sender}
}

// Send delivers text to the recipient and reports the outcome. It never panics and never
// returns an error; failures are logged and carried in the result.
func (m *Messenger) Send(ctx context.Context, to string, text string) (result SendResult) {
	start := time.Now()
	result.To = to
	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("sender panicked: %v", r)
		}
		result.Duration = time.Since(start)
		if result.Err != nil {
			slog.Error("Messenger.Send: delivery failed", "to", result.To, "error", result.Err)
		}
	}()

	canonicalTo, err := ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		result.Err = err
		return result
	}
	result.To = canonicalTo

	if err := m.sender.SendMessage(ctx, canonicalTo, text); err != nil {
		result.Err = err
		return result
	}
	slog.Debug("Messenger.Send: message accepted", "to", canonicalTo, "body_length", len(text))
	return result
}
