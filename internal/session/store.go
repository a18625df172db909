// Package session provides the process-local conversation state for CopilotRelay.
//
// The Store replaces ambient package-level maps with an explicit object shared by the inbound
// dispatcher and the idle sweeper. Nothing is persisted; state is lost on restart.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultDedupCapacity bounds how many processed message ids are remembered.
	DefaultDedupCapacity = 10000
	// DefaultDedupTTL is how long a processed message id is remembered.
	DefaultDedupTTL = 24 * time.Hour
)

// Opts holds configuration options for the Store.
type Opts struct {
	DedupCapacity int
	DedupTTL      time.Duration
}

// Option defines a configuration option for the Store.
type Option func(*Opts)

// WithDedupCapacity sets the maximum number of remembered message ids.
func WithDedupCapacity(n int) Option {
	return func(o *Opts) { o.DedupCapacity = n }
}

// WithDedupTTL sets how long a message id is remembered.
func WithDedupTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.DedupTTL = ttl }
}

// Store keeps one UserSession per sender id plus the de-duplication window. All methods are
// safe for concurrent use; a single mutex serializes mutations so counters and history appends
// are never lost, while ordering across concurrent requests stays best-effort.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]*models.UserSession
	processed *expirable.LRU[string, time.Time]
}

// NewStore creates an empty Store.
func NewStore(opts ...Option) *Store {
	cfg := Opts{DedupCapacity: DefaultDedupCapacity, DedupTTL: DefaultDedupTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DedupCapacity <= 0 {
		cfg.DedupCapacity = DefaultDedupCapacity
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = DefaultDedupTTL
	}

	slog.Debug("Store.NewStore: creating session store", "dedup_capacity", cfg.DedupCapacity, "dedup_ttl", cfg.DedupTTL)
	return &Store{
		sessions:  make(map[string]*models.UserSession),
		processed: expirable.NewLRU[string, time.Time](cfg.DedupCapacity, nil, cfg.DedupTTL),
	}
}

// MarkProcessed records messageID and reports whether it was new. A false return means the
// id was seen inside the de-duplication window and the event must be skipped.
func (s *Store) MarkProcessed(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processed.Contains(messageID) {
		return false
	}
	s.processed.Add(messageID, time.Now())
	return true
}

// IsProcessed reports whether messageID is inside the de-duplication window. It does not take
// s.mu; the expirable LRU guards its own state.
func (s *Store) IsProcessed(messageID string) bool {
	return s.processed.Contains(messageID)
}

// Touch gets or creates the session for id and refreshes its last interaction time.
// created is true when the session did not exist before this call.
func (s *Store) Touch(id string, now time.Time) (created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &models.UserSession{
			ID:                    id,
			MessageCount:          0,
			ConversationStartedAt: now,
		}
		s.sessions[id] = sess
		created = true
	}
	sess.LastInteractionAt = now
	return created
}

// IncrementMessageCount bumps the message counter for id and returns the new value.
// It returns 0 if the session does not exist.
func (s *Store) IncrementMessageCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return 0
	}
	sess.MessageCount++
	return sess.MessageCount
}

// History returns a copy of the conversation history for id.
func (s *Store) History(id string) []models.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok || len(sess.History) == 0 {
		return nil
	}
	return append([]models.Turn(nil), sess.History...)
}

// AppendExchange appends a user turn followed by the bot reply.
func (s *Store) AppendExchange(id, userMessage, botReply string) {
	s.update(id, func(sess *models.UserSession) {
		sess.History = append(sess.History,
			models.Turn{Role: models.RoleUser, Content: userMessage},
			models.Turn{Role: models.RoleBot, Content: botReply},
		)
	})
}

// AddFeedback appends a feedback entry for id.
func (s *Store) AddFeedback(id, text string, now time.Time) {
	s.update(id, func(sess *models.UserSession) {
		sess.FeedbackLog = append(sess.FeedbackLog, models.FeedbackEntry{Timestamp: now, Text: text})
	})
}

// Preferences returns the stored preferences for id, zero-valued if unknown.
func (s *Store) Preferences(id string) models.Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		return sess.Preferences
	}
	return models.Preferences{}
}

// Get returns a copy of the session for id.
func (s *Store) Get(id string) (models.UserSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return models.UserSession{}, false
	}
	return sess.Clone(), true
}

// Update applies fn to the live session for id under the store lock. It returns false if the
// session does not exist. fn must not call back into the Store.
func (s *Store) Update(id string, fn func(*models.UserSession)) bool {
	return s.update(id, fn)
}

func (s *Store) update(id string, fn func(*models.UserSession)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		slog.Debug("Store.update: session not found", "id", id)
		return false
	}
	fn(sess)
	return true
}

// Snapshot returns deep copies of every session, suitable for iteration without the lock.
func (s *Store) Snapshot() []models.UserSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.UserSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.Clone())
	}
	return out
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
