package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/gin-gonic/gin"
)

// Fixed plain-text bodies for responses outside the webhook result contract.
const (
	MethodNotSupportedBody = "Method not supported"
	NotFoundBody           = "Sorry, we couldn't find what you were looking for."
	InternalErrorBody      = "Something went wrong! Please try again later."
)

// Pre-marshaled fallback response to avoid runtime JSON encoding failures
var fallbackResultResponse []byte

// init validates that our fallback response can be marshaled
func init() {
	var err error
	fallbackResultResponse, err = json.Marshal(models.Failure(http.StatusInternalServerError, models.GenericApology))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback result response at startup: %v", err))
	}
}

// writeResult writes a dispatch result with HTTP 200.
func writeResult(c *gin.Context, result models.Result) {
	// Marshal first to catch encoding errors before writing headers
	data, err := json.Marshal(result)
	if err != nil {
		slog.Error("Server.writeResult: failed to marshal result", "error", err)
		data = fallbackResultResponse
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

func notFoundHandler(c *gin.Context) {
	slog.Warn("Server.notFoundHandler: no route", "method", c.Request.Method, "path", c.Request.URL.Path)
	c.String(http.StatusNotFound, NotFoundBody)
}

func recoveryHandler(c *gin.Context, recovered any) {
	slog.Error("Server.recoveryHandler: recovered from panic", "path", c.Request.URL.Path, "panic", recovered)
	c.String(http.StatusInternalServerError, InternalErrorBody)
	c.Abort()
}
