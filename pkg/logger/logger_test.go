package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithAddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := GetLogger()
	SetDefault(FromZap(zap.New(core)))
	t.Cleanup(func() { SetDefault(prev) })

	Info("cycle started", "batch", 10)
	With("run_id", "abc").Warn("entry failed", "schedule_id", 7)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, "cycle started", entries[0].Message)
	assert.Equal(t, int64(10), entries[0].ContextMap()["batch"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "abc", entries[1].ContextMap()["run_id"])
	assert.Equal(t, int64(7), entries[1].ContextMap()["schedule_id"])
}

func TestNewLevel(t *testing.T) {
	l, err := New("production", "warn")
	require.NoError(t, err)
	assert.False(t, l.log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.log.Desugar().Core().Enabled(zapcore.WarnLevel))
}
