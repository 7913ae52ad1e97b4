// Package notify holds the Notifier implementations used by the worker.
package notify

import (
	"context"
	"log/slog"

	"corpempire/internal/economy"
)

// Log writes notifications to the structured log. It is used when no chat
// integration is configured.
type Log struct {
	log *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{log: logger}
}

func (l *Log) NotifyUser(ctx context.Context, userID string, msg economy.Message) error {
	l.log.InfoContext(ctx, "notification", "user_id", userID, "title", msg.Title, "description", msg.Description, "fields", fieldAttrs(msg.Fields))
	return nil
}

func (l *Log) Broadcast(ctx context.Context, channel economy.Channel, msg economy.Message) error {
	l.log.InfoContext(ctx, "broadcast", "channel", string(channel), "title", msg.Title, "description", msg.Description, "fields", fieldAttrs(msg.Fields))
	return nil
}

func fieldAttrs(fields []economy.Field) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		out[f.Name] = f.Value
	}
	return out
}
