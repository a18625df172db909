package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSender = "254700000001"

func TestMarkProcessedDeduplicates(t *testing.T) {
	st := NewStore()

	assert.True(t, st.MarkProcessed("uuid-1"))
	assert.False(t, st.MarkProcessed("uuid-1"))
	assert.True(t, st.IsProcessed("uuid-1"))
	assert.True(t, st.MarkProcessed("uuid-2"))
}

func TestMarkProcessedIsBoundedByCapacity(t *testing.T) {
	st := NewStore(WithDedupCapacity(2))

	require.True(t, st.MarkProcessed("a"))
	require.True(t, st.MarkProcessed("b"))
	require.True(t, st.MarkProcessed("c"))

	assert.False(t, st.IsProcessed("a"), "oldest id should be evicted once capacity is exceeded")
	assert.True(t, st.IsProcessed("c"))
}

func TestMarkProcessedConcurrent(t *testing.T) {
	st := NewStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if st.MarkProcessed("same-id") {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, fresh)
}

func TestTouchCreatesOnce(t *testing.T) {
	st := NewStore()
	first := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	later := first.Add(time.Minute)

	assert.True(t, st.Touch(testSender, first))
	assert.False(t, st.Touch(testSender, later))

	sess, ok := st.Get(testSender)
	require.True(t, ok)
	assert.Equal(t, first, sess.ConversationStartedAt)
	assert.Equal(t, later, sess.LastInteractionAt)
	assert.Equal(t, 0, sess.MessageCount)
	assert.Equal(t, 1, st.Len())
}

func TestIncrementMessageCount(t *testing.T) {
	st := NewStore()
	assert.Equal(t, 0, st.IncrementMessageCount(testSender), "unknown sessions are not created")

	st.Touch(testSender, time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.IncrementMessageCount(testSender)
		}()
	}
	wg.Wait()

	sess, _ := st.Get(testSender)
	assert.Equal(t, 100, sess.MessageCount)
}

func TestAppendExchangeAndHistoryCopy(t *testing.T) {
	st := NewStore()
	st.Touch(testSender, time.Now())
	st.AppendExchange(testSender, "how do I sleep better?", "Keep a routine.")

	history := st.History(testSender)
	require.Len(t, history, 2)
	assert.Equal(t, models.Turn{Role: models.RoleUser, Content: "how do I sleep better?"}, history[0])
	assert.Equal(t, models.Turn{Role: models.RoleBot, Content: "Keep a routine."}, history[1])

	history[0].Content = "mutated"
	assert.Equal(t, "how do I sleep better?", st.History(testSender)[0].Content)
	assert.Nil(t, st.History("unknown"))
}

func TestAddFeedbackAndPreferences(t *testing.T) {
	st := NewStore()
	now := time.Now()
	st.Touch(testSender, now)
	st.AddFeedback(testSender, "", now)
	st.AddFeedback(testSender, "great", now)

	sess, _ := st.Get(testSender)
	require.Len(t, sess.FeedbackLog, 2)
	assert.Equal(t, "", sess.FeedbackLog[0].Text)
	assert.Equal(t, "great", sess.FeedbackLog[1].Text)

	assert.Equal(t, models.Preferences{}, st.Preferences(testSender))
	ok := st.Update(testSender, func(s *models.UserSession) {
		s.Preferences.Language = "Swahili"
	})
	assert.True(t, ok)
	assert.Equal(t, "Swahili", st.Preferences(testSender).Language)
	assert.False(t, st.Update("unknown", func(*models.UserSession) {}))
}

func TestSnapshotIsDetached(t *testing.T) {
	st := NewStore()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("25470000000%d", i)
		st.Touch(id, time.Now())
		st.AppendExchange(id, "q", "a")
	}

	snap := st.Snapshot()
	require.Len(t, snap, 3)
	snap[0].History[0].Content = "mutated"
	snap[0].LastInteractionAt = time.Time{}

	live, _ := st.Get(snap[0].ID)
	assert.Equal(t, "q", live.History[0].Content)
	assert.False(t, live.LastInteractionAt.IsZero())
}
