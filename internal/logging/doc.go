// Package logging provides structured logging for projecthub.
//
// # Overview
//
// The package wraps Zap with:
//   - Custom Trace level (-2, below Debug)
//   - Dual output (stdout + OpenTelemetry log bridge)
//   - Automatic context field injection (trace_id, switch.id, project.id)
//   - Secret redaction, since project env vars routinely carry tokens
//   - Per-level sampling (errors never sampled)
//
// # Usage
//
//	cfg := logging.NewDefaultConfig()
//	logger, err := logging.NewLogger(cfg, otelProvider)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	ctx = logging.WithSwitchID(ctx, sc.SwitchID)
//	ctx = logging.WithProjectID(ctx, sc.NewProjectID)
//	logger.Info(ctx, "switch committed", zap.Duration("elapsed", d))
//
// Library packages accept a *zap.Logger; pass logger.Underlying() from the
// composition root.
//
// # Testing
//
// NewTestLogger records every entry in memory:
//
//	tl := logging.NewTestLogger()
//	svc := NewService(tl.Underlying())
//	tl.AssertLogged(t, zapcore.WarnLevel, "handler replaced")
package logging
