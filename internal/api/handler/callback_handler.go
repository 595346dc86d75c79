package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Callback bodies larger than this are not legitimate gateway traffic
const maxCallbackBodySize = 1 << 20

// CallbackProcessor reconciles one raw gateway notification
type CallbackProcessor interface {
	Process(ctx context.Context, raw []byte) error
}

// CallbackHandler receives asynchronous gateway notifications. The gateway
// retries any non-200 response, so this handler acknowledges every request it
// can read; processing failures are logged and resolved from the archive.
type CallbackHandler struct {
	processor CallbackProcessor
	logger    *slog.Logger
}

// NewCallbackHandler creates a new gateway callback handler
func NewCallbackHandler(logger *slog.Logger, processor CallbackProcessor) *CallbackHandler {
	return &CallbackHandler{
		processor: processor,
		logger:    logger,
	}
}

// Receive handles one gateway notification and always acknowledges it
func (h *CallbackHandler) Receive(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBodySize))
	if err != nil {
		h.logger.Error("Failed to read gateway callback body", "error", err)
		c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
		return
	}

	if err := h.processor.Process(c.Request.Context(), raw); err != nil {
		// Already logged with detail by the reconciler; ack regardless
		h.logger.Warn("Gateway callback was not applied", "error", err)
	}

	c.JSON(http.StatusOK, gin.H{"ResultCode": 0, "ResultDesc": "Accepted"})
}
