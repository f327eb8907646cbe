package logger

import (
	"path/filepath"
	"testing"

	"github.com/collabroom/relay/internal/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerStdout(t *testing.T) {
	cfg := &config.LoggerConfig{}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)

	// defaults applied
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)

	logger.Info("hello")
	_ = logger.Sync()
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "relay.log")
	cfg := &config.LoggerConfig{Output: "file", FilePath: path, Format: "console", Color: true}
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Warn("to file")
	_ = logger.Sync()
}

func TestGetLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, getLogLevel("debug"))
	assert.Equal(t, zapcore.InfoLevel, getLogLevel("info"))
	assert.Equal(t, zapcore.WarnLevel, getLogLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, getLogLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, getLogLevel("bogus"))
}
