package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevelsAreSplitAcrossStreams(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := newLogger(false, zapcore.AddSync(&stdout), zapcore.AddSync(&stderr))

	logger.Debug("hidden")
	logger.Info("model loaded", zap.String("path", "model/mnist_cnn.model"))
	logger.Error("prediction failed")
	require.NoError(t, logger.Sync())

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &entry))
	assert.Equal(t, "model loaded", entry["msg"])
	assert.Equal(t, "model/mnist_cnn.model", entry["path"])
	assert.NotContains(t, stdout.String(), "hidden")
	assert.NotContains(t, stdout.String(), "prediction failed")
	assert.Contains(t, stderr.String(), "prediction failed")
}

func TestDebugEnablesDebugEntries(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := newLogger(true, zapcore.AddSync(&stdout), zapcore.AddSync(&stderr))
	logger.Debug("decoded image")
	assert.Contains(t, stdout.String(), "decoded image")
}
