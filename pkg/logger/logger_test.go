package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"igrelay/pkg/config"
)

func newBufferLogger(t *testing.T, level string) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := NewWithWriter(&config.LoggingConfig{Level: level, Format: "json"}, &buf)
	require.NoError(t, err)
	return log, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.LoggingConfig
		wantErr bool
	}{
		{name: "info level", cfg: &config.LoggingConfig{Level: "info"}},
		{name: "json format", cfg: &config.LoggingConfig{Level: "debug", Format: "json"}},
		{name: "invalid level", cfg: &config.LoggingConfig{Level: "invalid"}, wantErr: true},
		{name: "file output", cfg: &config.LoggingConfig{Level: "info", File: filepath.Join(t.TempDir(), "logs", "relay.log")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "warning", "error", "fatal", "disabled", "INFO"} {
		_, err := parseLogLevel(level)
		assert.NoError(t, err, level)
	}
	_, err := parseLogLevel("verbose")
	assert.Error(t, err)
}

func TestLevelFiltering(t *testing.T) {
	log, buf := newBufferLogger(t, "warn")

	log.Debug("hidden")
	log.Info("hidden too")
	log.Warn("shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["message"])
	assert.Equal(t, "igrelay", lines[0]["app"])
}

func TestWithFieldsAndError(t *testing.T) {
	log, buf := newBufferLogger(t, "debug")

	log.WithField("account", "alice").
		WithFields(map[string]interface{}{"stories": 3, "interval": 30 * time.Minute}).
		WithError(errors.New("boom")).
		Error("cycle failed")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "alice", lines[0]["account"])
	assert.EqualValues(t, 3, lines[0]["stories"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Contains(t, lines[0], "interval")
}

func TestWithFieldDoesNotLeakIntoParent(t *testing.T) {
	log, buf := newBufferLogger(t, "info")

	_ = log.WithField("account", "alice")
	log.Info("plain")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "account")
}

func TestStructuredLogging(t *testing.T) {
	log, buf := newBufferLogger(t, "info")

	log.InfoWithFields("Story relayed", map[string]interface{}{
		"story_id":  "3141",
		"delivered": true,
	})

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "3141", lines[0]["story_id"])
	assert.Equal(t, true, lines[0]["delivered"])
}

func TestLogRelay(t *testing.T) {
	log := NewTestLogger()

	LogRelay(log, "alice", "1", "photo", true, nil)
	LogRelay(log, "alice", "2", "video", false, errors.New("telegram down"))
	LogRelay(log, "alice", "3", "photo", false, nil)

	msgs := log.GetMessages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "INFO", msgs[0].Level)
	assert.Equal(t, "ERROR", msgs[1].Level)
	assert.EqualError(t, msgs[1].Error, "telegram down")
	assert.Equal(t, "DEBUG", msgs[2].Level)
	assert.Equal(t, "3", msgs[2].Fields["story_id"])
}

func TestGlobalLogger(t *testing.T) {
	require.NoError(t, Initialize(&config.LoggingConfig{Level: "error"}))
	assert.NotNil(t, GetLogger())
	assert.NotNil(t, WithField("k", "v"))
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	log.WithField("a", 1).WithError(errors.New("x")).Error("ignored")
	assert.NotNil(t, log.GetZerolog())
}
