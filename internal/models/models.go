// Package models defines the core data structures for CopilotRelay.
//
// It includes the normalized inbound webhook event, the per-user session state, and the
// result shape returned to the webhook caller. These types are shared across modules.
package models

import (
	"errors"
	"strings"
)

// MessageType is the provider's classification of an inbound message.
type MessageType string

const (
	// MessageTypeText is a plain text message, the only type the relay acts on.
	MessageTypeText MessageType = "text"
	// MessageTypeImage is an image attachment.
	MessageTypeImage MessageType = "image"
	// MessageTypeAudio is a voice note or audio attachment.
	MessageTypeAudio MessageType = "audio"
	// MessageTypeVideo is a video attachment.
	MessageTypeVideo MessageType = "video"
	// MessageTypeFile is a generic document attachment.
	MessageTypeFile MessageType = "file"
)

// Error variables for better error handling and testability
var (
	ErrEmptyMessageID = errors.New("message_uuid cannot be empty")
	ErrEmptySender    = errors.New("from cannot be empty")
)

// InboundEvent is one webhook delivery from the messaging provider, normalized to the fields
// the dispatcher consumes. Type is empty for system events such as delivery receipts.
type InboundEvent struct {
	MessageID string      `json:"message_uuid"`
	SenderID  string      `json:"from"`
	Type      MessageType `json:"message_type,omitempty"`
	Text      string      `json:"text,omitempty"`
}

// HasType reports whether the provider tagged the event with a message type.
func (e InboundEvent) HasType() bool {
	return strings.TrimSpace(string(e.Type)) != ""
}

// IsText reports whether the event carries a text message.
func (e InboundEvent) IsText() bool {
	return e.Type == MessageTypeText
}

// Validate checks that the identifying fields are present.
func (e InboundEvent) Validate() error {
	if strings.TrimSpace(e.MessageID) == "" {
		return ErrEmptyMessageID
	}
	if strings.TrimSpace(e.SenderID) == "" {
		return ErrEmptySender
	}
	return nil
}

// ResultStatus represents the outcome reported to the webhook caller.
type ResultStatus string

const (
	// ResultStatusSuccess indicates the event was handled (or deliberately skipped).
	ResultStatusSuccess ResultStatus = "success"
	// ResultStatusError indicates the event could not be handled.
	ResultStatusError ResultStatus = "error"
)

// Result is the JSON body returned to the webhook caller. It is independent of whether the
// outbound WhatsApp send succeeded.
type Result struct {
	Status  ResultStatus `json:"status"`                          // outcome of the dispatch
	Message string       `json:"message,omitempty"`               // informational or apology text
	Reply   string       `json:"response_from_flowise,omitempty"` // text relayed back to the user
	Code    int          `json:"code,omitempty"`                  // numeric status for informational and failure paths
}

// IsSuccess reports whether the result carries a success status.
func (r Result) IsSuccess() bool {
	return r.Status == ResultStatusSuccess
}

// Text returns the user-facing text of the result, preferring the relayed reply.
func (r Result) Text() string {
	if r.Reply != "" {
		return r.Reply
	}
	return r.Message
}

// Reply creates a success result carrying the text that was relayed to the user.
func Reply(text string) Result {
	return Result{Status: ResultStatusSuccess, Reply: text}
}

// Info creates a success result for paths that intentionally send nothing.
func Info(code int, message string) Result {
	return Result{Status: ResultStatusSuccess, Message: message, Code: code}
}

// Failure creates an error result with an embedded numeric status.
func Failure(code int, message string) Result {
	return Result{Status: ResultStatusError, Message: message, Code: code}
}
