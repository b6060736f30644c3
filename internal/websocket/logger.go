package websocket

import (
	"go.uber.org/zap"
)

// WebSocketLogger provides structured logging for WebSocket events
type WebSocketLogger struct {
	logger *zap.Logger
}

// NewWebSocketLogger tags base with component=websocket. A nil base uses the global logger.
func NewWebSocketLogger(base *zap.Logger) *WebSocketLogger {
	if base == nil {
		base = zap.L()
	}
	return &WebSocketLogger{
		logger: base.With(zap.String("component", "websocket")),
	}
}

func (l *WebSocketLogger) Info(event, userID, connID string, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, userID, connID, fields)...)
}

func (l *WebSocketLogger) Warn(event, userID, connID string, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, userID, connID, fields)...)
}

func (l *WebSocketLogger) Error(event, userID, connID string, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, userID, connID, append(fields, zap.Error(err)))...)
}

func (l *WebSocketLogger) fields(event, userID, connID string, extra []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("event", event),
		zap.String("user_id", userID),
		zap.String("conn_id", connID),
	}, extra...)
}
