// Package middleware - Logging middleware для структурированного логирования.
package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// LoggingConfig - конфигурация для logging middleware.
type LoggingConfig struct {
	Logger         *slog.Logger
	SkipPaths      []string // Пути для пропуска логирования (e.g., /health)
	LogRequestBody bool     // Логировать тело запроса (адреса доставки - PII!)
	MaxBodySize    int      // Максимальный размер тела для логирования
}

// DefaultLoggingConfig - конфигурация по умолчанию.
func DefaultLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Logger:      slog.Default(),
		SkipPaths:   []string{"/health", "/live", "/ready", "/metrics"},
		MaxBodySize: 1024,
	}
}

// Logging middleware пишет одну запись на запрос.
//
// Уровень зависит от статуса: 5xx - Error, 4xx - Warn, остальное - Info.
// route - шаблон маршрута gin (/api/v1/orders/:id), path - фактический путь.
func Logging(config *LoggingConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultLoggingConfig()
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 1024
	}

	skipMap := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipMap[path] = true
	}

	return func(c *gin.Context) {
		if skipMap[c.Request.URL.Path] {
			c.Next()
			return
		}

		start := time.Now()

		var requestBody string
		if config.LogRequestBody && c.Request.Body != nil {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			requestBody = truncateString(string(bodyBytes), config.MaxBodySize)
		}

		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.String("path", c.Request.URL.Path),
			slog.String("query", c.Request.URL.RawQuery),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
			slog.Int("response_size", c.Writer.Size()),
		}

		if requestBody != "" {
			attrs = append(attrs, slog.String("request_body", requestBody))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("errors", c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}

		// request_id, user_id и trace_id добавляет ContextHandler логгера
		config.Logger.LogAttrs(ctx, level, "HTTP Request", attrs...)
	}
}

// truncateString обрезает строку до максимальной длины.
func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...[truncated]"
}
