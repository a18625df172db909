// Package flow routes inbound WhatsApp events to commands or the AI backend and relays replies.
package flow

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/BTreeMap/CopilotRelay/internal/messaging"
	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/BTreeMap/CopilotRelay/internal/session"
	"github.com/BTreeMap/CopilotRelay/internal/util"
)

// Result messages for paths that do not relay a reply.
const (
	DuplicateMessage   = "Duplicate message skipped"
	NoTypeMessage      = "No action needed for no-type message"
	UnsupportedMessage = "Message type not supported."
	AIFailureMessage   = "Failed to process text message."
)

// WelcomeMessage is sent once, on the first message ever seen from a sender.
const WelcomeMessage = "Welcome!"

// Querier answers a free-text question. Implementations never fail: errors are folded into a
// user-facing fallback string, and an empty string means no usable answer.
type Querier interface {
	Query(ctx context.Context, question, chatID string, history []models.Turn) string
}

// Opts holds configuration options for the Dispatcher.
type Opts struct {
	Now  func() time.Time
	Pick func(n int) int
}

// Option defines a configuration option for the Dispatcher.
type Option func(*Opts)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

// WithPicker overrides the random index source used by the tip command.
func WithPicker(pick func(n int) int) Option {
	return func(o *Opts) { o.Pick = pick }
}

// Dispatcher handles one inbound event at a time. It is safe for concurrent use; all shared
// state lives in the session store.
type Dispatcher struct {
	store     *session.Store
	messenger *messaging.Messenger
	querier   Querier
	now       func() time.Time
	pick      func(n int) int
}

// NewDispatcher creates a Dispatcher over the given collaborators.
func NewDispatcher(store *session.Store, messenger *messaging.Messenger, querier Querier, opts ...Option) *Dispatcher {
	cfg := Opts{Now: time.Now, Pick: util.PickIndex}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher{
		store:     store,
		messenger: messenger,
		querier:   querier,
		now:       cfg.Now,
		pick:      cfg.Pick,
	}
}

// Handle processes one inbound event and returns the result for the webhook caller. The
// outcome of outbound sends never changes the result.
func (d *Dispatcher) Handle(ctx context.Context, evt models.InboundEvent) (result models.Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Dispatcher.Handle: recovered from panic", "from", evt.SenderID, "message_uuid", evt.MessageID, "panic", r, "stack", string(debug.Stack()))
			result = models.Failure(http.StatusInternalServerError, models.GenericApology)
		}
	}()

	if !d.store.MarkProcessed(evt.MessageID) {
		slog.Info("Dispatcher.Handle: duplicate message skipped", "message_uuid", evt.MessageID)
		return models.Info(http.StatusOK, DuplicateMessage)
	}

	from := evt.SenderID
	if d.store.Touch(from, d.now()) {
		slog.Info("Dispatcher.Handle: new conversation", "from", from)
		d.messenger.Send(ctx, from, WelcomeMessage)
	}
	count := d.store.IncrementMessageCount(from)
	slog.Debug("Dispatcher.Handle: inbound event", "from", from, "message_uuid", evt.MessageID, "type", evt.Type, "count", count)

	if !evt.HasType() {
		slog.Info("Dispatcher.Handle: event without message type", "message_uuid", evt.MessageID)
		return models.Info(http.StatusOK, NoTypeMessage)
	}
	if !evt.IsText() {
		slog.Warn("Dispatcher.Handle: unhandled message type", "type", evt.Type, "from", from)
		return models.Failure(http.StatusBadRequest, UnsupportedMessage)
	}

	return d.handleText(ctx, from, evt.Text)
}

// handleText routes a text message. The first matching rule wins.
func (d *Dispatcher) handleText(ctx context.Context, from, text string) models.Result {
	lower := strings.ToLower(text)
	switch {
	case lower == "help":
		return d.reply(ctx, from, HelpMessage)
	case hasFeedbackPrefix(text):
		return d.handleFeedback(ctx, from, text)
	case lower == "summary":
		return d.reply(ctx, from, Summarize(d.store.History(from)))
	case lower == "preferences":
		return d.reply(ctx, from, FormatPreferences(d.store.Preferences(from)))
	case lower == "tip":
		return d.reply(ctx, from, d.randomTip())
	case IsEndOfConversation(lower):
		return d.reply(ctx, from, EndOfConversationMessage)
	}
	return d.askAI(ctx, from, text)
}

func (d *Dispatcher) askAI(ctx context.Context, from, text string) models.Result {
	answer := d.querier.Query(ctx, text, from, d.store.History(from))
	if answer == "" {
		slog.Error("Dispatcher.askAI: empty answer from AI backend", "from", from)
		return models.Failure(http.StatusInternalServerError, AIFailureMessage)
	}
	if models.IsFallbackAnswer(answer) {
		slog.Warn("Dispatcher.askAI: AI backend fell back to an apology", "from", from)
	} else {
		d.store.AppendExchange(from, text, answer)
	}
	return d.reply(ctx, from, answer)
}

// reply sends text to the user and reports it as the relayed reply.
func (d *Dispatcher) reply(ctx context.Context, to, text string) models.Result {
	d.messenger.Send(ctx, to, text)
	return models.Reply(text)
}

