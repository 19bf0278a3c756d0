package logging

import (
	"testing"
	"time"

	"github.com/fyrsmithlabs/projecthub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Defaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.True(t, cfg.Output.Stdout)
	assert.False(t, cfg.Output.OTEL)
	assert.True(t, cfg.Sampling.Enabled)
	assert.Equal(t, time.Second, cfg.Sampling.Tick.Duration())
	assert.True(t, cfg.Redaction.Enabled)
	assert.Equal(t, "projecthub", cfg.Fields["service"])
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return NewDefaultConfig() }

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "invalid format",
			mutate: func(c *Config) { c.Format = "xml" },
			errMsg: "format must be 'json' or 'console'",
		},
		{
			name:   "no output enabled",
			mutate: func(c *Config) { c.Output = OutputConfig{} },
			errMsg: "at least one output must be enabled",
		},
		{
			name:   "zero sampling tick",
			mutate: func(c *Config) { c.Sampling.Tick = config.Duration(0) },
			errMsg: "sampling tick",
		},
		{
			name:   "negative caller skip",
			mutate: func(c *Config) { c.Caller.Skip = -1 },
			errMsg: "caller skip",
		},
		{
			name:   "bad redaction pattern",
			mutate: func(c *Config) { c.Redaction.Patterns = []string{"(unclosed"} },
			errMsg: "invalid redaction pattern",
		},
		{
			name:   "empty field value",
			mutate: func(c *Config) { c.Fields = map[string]string{"env": ""} },
			errMsg: "empty value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
