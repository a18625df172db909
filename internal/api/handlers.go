package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/gin-gonic/gin"
)

// inboundHandler accepts one provider webhook delivery. POSTs always get HTTP 200 with the
// dispatch result in the body; the body reports the outcome, not the status line.
func (s *Server) inboundHandler(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		slog.Warn("Server.inboundHandler: method not allowed", "method", c.Request.Method)
		c.Header("Allow", http.MethodPost)
		c.String(http.StatusMethodNotAllowed, MethodNotSupportedBody)
		return
	}

	var evt models.InboundEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		slog.Error("Server.inboundHandler: failed to decode event", "error", err)
		c.String(http.StatusInternalServerError, InternalErrorBody)
		return
	}
	if err := evt.Validate(); err != nil {
		slog.Warn("Server.inboundHandler: incomplete event", "message_uuid", evt.MessageID, "from", evt.SenderID, "error", err)
	}
	slog.Debug("Server.inboundHandler: event received", "message_uuid", evt.MessageID, "from", evt.SenderID, "type", evt.Type)

	// The event is already marked processed once dispatch starts, so the AI query and the reply
	// must outlive a caller that hangs up.
	result := s.dispatcher.Handle(context.WithoutCancel(c.Request.Context()), evt)
	writeResult(c, result)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.sessions.Len()})
}
