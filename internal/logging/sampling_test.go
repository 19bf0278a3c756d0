package logging

import (
	"context"
	"testing"
	"time"

	"github.com/fyrsmithlabs/projecthub/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampledLogger(levels map[zapcore.Level]LevelSamplingConfig) (*Logger, *observer.ObservedLogs) {
	core, observed := observer.New(TraceLevel)
	sampled := newSampledCore(core, SamplingConfig{
		Enabled: true,
		Tick:    config.Duration(time.Minute),
		Levels:  levels,
	})
	return &Logger{zap: zap.New(sampled), config: NewDefaultConfig()}, observed
}

func TestNewSampledCore_Disabled(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)

	assert.Equal(t, core, newSampledCore(core, SamplingConfig{Enabled: false}))
}

func TestNewSampledCore_ErrorsNeverSampled(t *testing.T) {
	logger, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel: {Initial: 1, Thereafter: 0},
	})

	for i := 0; i < 50; i++ {
		logger.Error(context.Background(), "hook fault")
	}

	assert.Len(t, observed.FilterMessage("hook fault").All(), 50)
}

func TestNewSampledCore_PerLevelRates(t *testing.T) {
	logger, observed := sampledLogger(map[zapcore.Level]LevelSamplingConfig{
		zapcore.InfoLevel:  {Initial: 5, Thereafter: 0},
		zapcore.DebugLevel: {Initial: 2, Thereafter: 0},
	})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		logger.Info(ctx, "info message")
		logger.Debug(ctx, "debug message")
		logger.Warn(ctx, "warn message")
	}

	assert.Len(t, observed.FilterMessage("info message").All(), 5)
	assert.Len(t, observed.FilterMessage("debug message").All(), 2)
	assert.Len(t, observed.FilterMessage("warn message").All(), 20, "levels without config pass through")
}

func TestLevelFilterCore_Range(t *testing.T) {
	core, observed := observer.New(TraceLevel)
	filtered := &levelFilterCore{Core: core, minLevel: zapcore.InfoLevel, maxLevel: zapcore.InfoLevel}

	assert.True(t, filtered.Enabled(zapcore.InfoLevel))
	assert.False(t, filtered.Enabled(zapcore.DebugLevel))
	assert.False(t, filtered.Enabled(zapcore.WarnLevel))

	child := filtered.With([]zapcore.Field{zap.String("k", "v")})
	logger := zap.New(child)
	logger.Info("in range")
	logger.Warn("out of range")

	entries := observed.All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "v", entries[0].ContextMap()["k"])
	}
}
