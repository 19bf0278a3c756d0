// internal/logging/sampling.go
package logging

import (
	"go.uber.org/zap/zapcore"
)

// sampledLevels are the levels eligible for sampling. Error and above are
// never sampled.
var sampledLevels = []zapcore.Level{
	TraceLevel,
	zapcore.DebugLevel,
	zapcore.InfoLevel,
	zapcore.WarnLevel,
}

// newSampledCore wraps core with a sampler per level.
func newSampledCore(core zapcore.Core, cfg SamplingConfig) zapcore.Core {
	if !cfg.Enabled {
		return core
	}

	cores := []zapcore.Core{
		&levelFilterCore{Core: core, minLevel: zapcore.ErrorLevel, maxLevel: zapcore.FatalLevel},
	}

	for _, lvl := range sampledLevels {
		filtered := &levelFilterCore{Core: core, minLevel: lvl, maxLevel: lvl}
		lc, ok := cfg.Levels[lvl]
		if !ok || lc.Initial <= 0 {
			cores = append(cores, filtered)
			continue
		}
		cores = append(cores, zapcore.NewSamplerWithOptions(
			filtered,
			cfg.Tick.Duration(),
			lc.Initial,
			lc.Thereafter,
		))
	}

	return zapcore.NewTee(cores...)
}

// levelFilterCore passes only entries in [minLevel, maxLevel].
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
	maxLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	if lvl < c.minLevel || lvl > c.maxLevel {
		return false
	}
	return c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

// With creates a child core that preserves level filtering.
func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{
		Core:     c.Core.With(fields),
		minLevel: c.minLevel,
		maxLevel: c.maxLevel,
	}
}
