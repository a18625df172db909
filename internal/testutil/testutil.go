// Package testutil provides common test utilities and helpers for CopilotRelay tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/BTreeMap/CopilotRelay/internal/models"
)

// TestSender is the sender phone number used across tests.
const TestSender = "254700000001"

// QueryCall records one invocation of StubQuerier.Query.
type QueryCall struct {
	Question string
	ChatID   string
	History  []models.Turn
}

// StubQuerier is an AI backend that returns a canned answer and records what it was asked.
// Answer may be empty to simulate a backend that produced nothing.
type StubQuerier struct {
	mu     sync.Mutex
	Answer string
	// AnswerFunc, when set, takes precedence over Answer.
	AnswerFunc func(question string) string
	calls      []QueryCall
}

// NewStubQuerier creates a StubQuerier that always answers with answer.
func NewStubQuerier(answer string) *StubQuerier {
	return &StubQuerier{Answer: answer}
}

// Query records the call and returns the configured answer.
func (s *StubQuerier) Query(ctx context.Context, question, chatID string, history []models.Turn) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, QueryCall{
		Question: question,
		ChatID:   chatID,
		History:  append([]models.Turn(nil), history...),
	})
	if s.AnswerFunc != nil {
		return s.AnswerFunc(question)
	}
	return s.Answer
}

// Calls returns a copy of every recorded call.
func (s *StubQuerier) Calls() []QueryCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]QueryCall(nil), s.calls...)
}

// TextEvent builds an inbound text event from TestSender.
func TextEvent(id, text string) models.InboundEvent {
	return models.InboundEvent{MessageID: id, SenderID: TestSender, Type: models.MessageTypeText, Text: text}
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// DecodeResult decodes a recorded webhook response body into a Result.
func DecodeResult(t *testing.T, rr *httptest.ResponseRecorder) models.Result {
	t.Helper()
	var result models.Result
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	return result
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, body))
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

// MustMarshalJSON marshals an object to JSON and fails test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v", err)
	}
}
