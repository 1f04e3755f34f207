package observability

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/kestrelsec/a11yaudit/internal/config"
)

// memSink is an in-memory WriteSyncer for capturing log output.
type memSink struct {
	strings.Builder
}

func (s *memSink) Sync() error { return nil }

func TestInitializeOnlyFirstCallWins(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, zapcore.Lock(sink))
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "second"}, zapcore.Lock(sink))

	logger := GetLogger()
	logger.Info("hello")
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(sink.String())), &entry))
	assert.Equal(t, "first", entry["logger"])
	assert.Equal(t, "hello", entry["msg"])
}

func TestLevelFiltering(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{Level: "warn", Format: "json", ServiceName: "svc"}, zapcore.Lock(sink))

	logger := GetLogger()
	logger.Info("suppressed")
	logger.Warn("visible")
	require.NoError(t, logger.Sync())

	out := sink.String()
	assert.NotContains(t, out, "suppressed")
	assert.Contains(t, out, "visible")
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	sink := &memSink{}
	Initialize(config.LoggerConfig{Level: "shouty", Format: "json", ServiceName: "svc"}, zapcore.Lock(sink))

	logger := GetLogger()
	logger.Debug("suppressed")
	logger.Info("visible")
	require.NoError(t, logger.Sync())

	assert.NotContains(t, sink.String(), "suppressed")
	assert.Contains(t, sink.String(), "visible")
}

func TestGetLoggerBeforeInitializeReturnsFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	assert.NotNil(t, logger)
}
