// Package logger provides structured logging for the story relay.
//
// It wraps zerolog behind a small Logger interface so components can attach
// fields (account, story_id, state) without depending on zerolog directly.
// Console output is human readable; set Format to "json" for log shippers.
//
//	logger.Initialize(&cfg.Logging)
//	logger.WithField("account", "alice").Info("Fetching stories")
//
// Tests use NewNopLogger or NewTestLogger, which captures messages for
// assertions.
package logger
