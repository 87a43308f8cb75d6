// file: internal/middleware/structured_logger.go
package middleware

import (
	"net/http"
	"strings"
	"time"

	"engagehub/internal/contextutils"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingConfig holds configuration for the access log
type LoggingConfig struct {
	SlowRequestThreshold time.Duration `json:"slow_request_threshold"`
	SkipPaths            []string      `json:"skip_paths"`
}

// DefaultLoggingConfig returns production-ready logging configuration
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		SlowRequestThreshold: 1 * time.Second,
		SkipPaths:            []string{"/health"},
	}
}

// StructuredLogging writes one access log line per request
func StructuredLogging(config *LoggingConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultLoggingConfig()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, p := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					next.ServeHTTP(w, r)
					return
				}
			}

			start := GetRequestStart(r.Context())
			writer := &StructuredResponseWriter{ResponseWriter: w}

			next.ServeHTTP(writer, r)

			logCompletedRequest(GetRequestLogger(r.Context()), r, writer, time.Since(start), config)
		})
	}
}

// ===============================
// STRUCTURED RESPONSE WRITER
// ===============================

// StructuredResponseWriter captures response data for logging
type StructuredResponseWriter struct {
	http.ResponseWriter
	status       int
	bytesWritten int64
}

func (w *StructuredResponseWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *StructuredResponseWriter) Write(data []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	written, err := w.ResponseWriter.Write(data)
	w.bytesWritten += int64(written)
	return written, err
}

func (w *StructuredResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Status returns the HTTP status code
func (w *StructuredResponseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// logCompletedRequest logs the completed HTTP request
func logCompletedRequest(logger *zap.Logger, r *http.Request, w *StructuredResponseWriter, duration time.Duration, config *LoggingConfig) {
	fields := []zap.Field{
		zap.String("event", "request_completed"),
		zap.Int("status", w.Status()),
		zap.Duration("duration", duration),
		zap.Int64("response_size", w.bytesWritten),
	}
	if r.URL.RawQuery != "" {
		fields = append(fields, zap.String("query", r.URL.RawQuery))
	}
	if actor, ok := contextutils.GetActor(r.Context()); ok {
		fields = append(fields, zap.Int64("user_id", actor.UserID), zap.String("role", string(actor.Role)))
	}

	switch getLogLevel(w.Status(), duration, config) {
	case zapcore.ErrorLevel:
		logger.Error("HTTP request completed with error", fields...)
	case zapcore.WarnLevel:
		logger.Warn("HTTP request completed with warning", fields...)
	default:
		logger.Info("HTTP request completed", fields...)
	}
}

func getLogLevel(status int, duration time.Duration, config *LoggingConfig) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400, duration > config.SlowRequestThreshold:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}
