package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/BTreeMap/CopilotRelay/internal/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// recordingDispatcher returns a fixed result and records the events it saw.
type recordingDispatcher struct {
	mu     sync.Mutex
	result models.Result
	events []models.InboundEvent
}

func (d *recordingDispatcher) Handle(ctx context.Context, evt models.InboundEvent) models.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
	return d.result
}

type panickingDispatcher struct{}

func (panickingDispatcher) Handle(ctx context.Context, evt models.InboundEvent) models.Result {
	panic("dispatcher exploded")
}

type fixedCounter int

func (n fixedCounter) Len() int { return int(n) }

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestInboundHandler_PostReturnsResult(t *testing.T) {
	d := &recordingDispatcher{result: models.Reply("hello back")}
	s := NewServer(d, fixedCounter(0))

	body := map[string]string{"message_uuid": "m1", "from": testutil.TestSender, "message_type": "text", "text": "hello", "channel": "whatsapp"}
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, DefaultWebhookPath, body))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "inbound POST")
	assert.JSONEq(t, `{"status":"success","response_from_flowise":"hello back"}`, rr.Body.String())
	require.Len(t, d.events, 1)
	assert.Equal(t, testutil.TextEvent("m1", "hello"), d.events[0])
}

func TestInboundHandler_FailureResultStillHTTP200(t *testing.T) {
	d := &recordingDispatcher{result: models.Failure(http.StatusBadRequest, "Message type not supported.")}
	s := NewServer(d, fixedCounter(0))

	body := map[string]string{"message_uuid": "m1", "from": testutil.TestSender, "message_type": "image"}
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, DefaultWebhookPath, body))

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "failure result")
	result := testutil.DecodeResult(t, rr)
	assert.Equal(t, models.ResultStatusError, result.Status)
	assert.Equal(t, http.StatusBadRequest, result.Code)
}

func TestInboundHandler_MethodNotSupported(t *testing.T) {
	s := NewServer(&recordingDispatcher{}, fixedCounter(0))

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rr := serve(s, testutil.CreateHTTPRequest(t, method, DefaultWebhookPath, nil))
			testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, method)
			assert.Equal(t, MethodNotSupportedBody, rr.Body.String())
			assert.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
		})
	}
}

func TestInboundHandler_UndecodableBody(t *testing.T) {
	d := &recordingDispatcher{}
	s := NewServer(d, fixedCounter(0))

	req := httptest.NewRequest(http.MethodPost, DefaultWebhookPath, strings.NewReader("{not json"))
	rr := serve(s, req)

	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "bad JSON")
	assert.Equal(t, InternalErrorBody, rr.Body.String())
	assert.Empty(t, d.events)
}

func TestNotFound(t *testing.T) {
	s := NewServer(&recordingDispatcher{}, fixedCounter(0))

	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/unknown", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "unknown route")
	assert.Equal(t, NotFoundBody, rr.Body.String())
}

func TestTrailingSlashIsNotRedirected(t *testing.T) {
	d := &recordingDispatcher{}
	s := NewServer(d, fixedCounter(0))

	body := map[string]string{"message_uuid": "m1", "from": testutil.TestSender}
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, DefaultWebhookPath+"/", body))

	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "trailing slash")
	assert.Equal(t, NotFoundBody, rr.Body.String())
	assert.Empty(t, d.events)
}

func TestInboundHandler_IncompleteEventStillDispatched(t *testing.T) {
	d := &recordingDispatcher{result: models.Info(http.StatusOK, "ok")}
	s := NewServer(d, fixedCounter(0))

	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, DefaultWebhookPath, map[string]string{"message_type": "text"}))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "incomplete event")
	require.Len(t, d.events, 1)
	assert.ErrorIs(t, d.events[0].Validate(), models.ErrEmptyMessageID)
}

func TestPanicRecovered(t *testing.T) {
	s := NewServer(panickingDispatcher{}, fixedCounter(0))

	body := map[string]string{"message_uuid": "m1", "from": testutil.TestSender, "message_type": "text", "text": "hi"}
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, DefaultWebhookPath, body))

	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "panic")
	assert.Equal(t, InternalErrorBody, rr.Body.String())
}

func TestHealth(t *testing.T) {
	s := NewServer(&recordingDispatcher{}, fixedCounter(3))

	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, HealthPath, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	assert.JSONEq(t, `{"status":"ok","sessions":3}`, rr.Body.String())
}

func TestRequestIDHeader(t *testing.T) {
	s := NewServer(&recordingDispatcher{}, fixedCounter(0))

	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodGet, HealthPath, nil))
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))

	req := testutil.CreateHTTPRequest(t, http.MethodGet, HealthPath, nil)
	req.Header.Set(RequestIDHeader, "caller-supplied")
	rr = serve(s, req)
	assert.Equal(t, "caller-supplied", rr.Header().Get(RequestIDHeader))
}

func TestCustomWebhookPath(t *testing.T) {
	d := &recordingDispatcher{result: models.Info(http.StatusOK, "ok")}
	s := NewServer(d, fixedCounter(0), WithWebhookPath("/webhooks/inbound"), WithAddr(":8080"))
	assert.Equal(t, ":8080", s.Addr())

	body := map[string]string{"message_uuid": "m1", "from": testutil.TestSender}
	rr := serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, "/webhooks/inbound", body))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "custom path")

	rr = serve(s, testutil.CreateHTTPRequest(t, http.MethodPost, DefaultWebhookPath, body))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "default path no longer routed")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := NewServer(&recordingDispatcher{}, fixedCounter(0), WithAddr("127.0.0.1:0"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.Run(ctx))
}
