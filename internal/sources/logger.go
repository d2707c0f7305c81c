package sources

import (
	"log/slog"
	"time"
)

// LogRequest logs an outgoing API request.
func LogRequest(log *slog.Logger, source, method, url string, params map[string]any) {
	if len(params) > 0 {
		log.Debug("source request", "source", source, "method", method, "url", url, "params", params)
	} else {
		log.Debug("source request", "source", source, "method", method, "url", url)
	}
}

// LogResponse logs a received API response.
func LogResponse(log *slog.Logger, source string, statusCode int, duration time.Duration, size int) {
	log.Debug("source response",
		"source", source,
		"status", statusCode,
		"duration_ms", duration.Milliseconds(),
		"bytes", size,
	)
}

// LogError logs a failed source operation.
func LogError(log *slog.Logger, source, operation string, err error) {
	log.Warn("source error", "source", source, "operation", operation, "error", err)
}
