package search

import (
	"time"

	"github.com/riddle015/riverhacks/internal/logger"
)

// LogRequest logs an outbound adapter request.
func LogRequest(log *logger.Logger, adapter, method, url string, params map[string]interface{}) {
	logger.OrNop(log).Debug("adapter request", "adapter", adapter, "method", method, "url", url, "params", params)
}

// LogResponse logs an adapter response.
func LogResponse(log *logger.Logger, adapter string, statusCode int, duration time.Duration, resultCount int) {
	logger.OrNop(log).Debug("adapter response",
		"adapter", adapter, "status", statusCode, "duration_ms", duration.Milliseconds(), "results", resultCount)
}

// LogError logs a failed adapter operation.
func LogError(log *logger.Logger, adapter, operation string, err error) {
	logger.OrNop(log).Warn("adapter error", "adapter", adapter, "op", operation, "err", err)
}
