package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestTestLogger_Assertions(t *testing.T) {
	tl := NewTestLogger()
	ctx := context.Background()

	tl.Warn(ctx, "handler replaced", zap.String("handler", "git"))

	tl.AssertLogged(t, zapcore.WarnLevel, "replaced")
	tl.AssertNotLogged(t, zapcore.ErrorLevel, "replaced")
	tl.AssertField(t, "handler replaced", "handler", "git")
	assert.Len(t, tl.All(), 1)

	tl.Reset()
	assert.Empty(t, tl.All())
}

func TestTestLogger_CapturesTrace(t *testing.T) {
	tl := NewTestLogger()

	tl.Trace(context.Background(), "hook entered")

	tl.AssertLogged(t, TraceLevel, "hook entered")
}
