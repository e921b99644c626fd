package websocket

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"chatapp/pkg/logger"
)

// Logger writes websocket events with the session fields attached.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(log *logger.Logger) *Logger {
	return &Logger{logger: log.Named("websocket").Logger}
}

func (l *Logger) fields(event string, c *Client, extra []zap.Field) []zap.Field {
	fields := []zap.Field{zap.String("event", event)}
	if c != nil {
		fields = append(fields, zap.String("client_id", c.ID.String()))
		if c.UserID != uuid.Nil {
			fields = append(fields, zap.String("user_id", c.UserID.String()))
		}
	}
	return append(fields, extra...)
}

func (l *Logger) Info(event string, c *Client, fields ...zap.Field) {
	l.logger.Info("websocket_event", l.fields(event, c, fields)...)
}

func (l *Logger) Warn(event string, c *Client, fields ...zap.Field) {
	l.logger.Warn("websocket_warning", l.fields(event, c, fields)...)
}

func (l *Logger) Error(event string, c *Client, err error, fields ...zap.Field) {
	l.logger.Error("websocket_error", l.fields(event, c, append(fields, zap.Error(err)))...)
}
