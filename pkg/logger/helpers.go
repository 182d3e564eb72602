package logger

import (
	"context"

	"github.com/rs/zerolog"
)

// LogRelay logs the result of relaying one story
func LogRelay(log Logger, account, storyID, mediaKind string, delivered bool, err error) {
	entry := log.WithFields(map[string]interface{}{
		"account":    account,
		"story_id":   storyID,
		"media_kind": mediaKind,
		"delivered":  delivered,
	})

	switch {
	case err != nil:
		entry.WithError(err).Error("Story relay failed")
	case delivered:
		entry.Info("Story relayed")
	default:
		entry.Debug("Story skipped")
	}
}

// LogStateTransition logs a supervising loop state change
func LogStateTransition(log Logger, from, to, reason string) {
	log.DebugWithFields("State transition", map[string]interface{}{
		"from":   from,
		"to":     to,
		"reason": reason,
	})
}

// LogComponentStart logs when a component starts
func LogComponentStart(log Logger, component string, config map[string]interface{}) {
	entry := log.WithField("component", component)
	if len(config) > 0 {
		entry = entry.WithFields(config)
	}
	entry.Info("Component started")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

// nopLogger is a logger that does nothing
type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger {
	nop := zerolog.Nop()
	return &nop
}
