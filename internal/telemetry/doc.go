// Package telemetry wires OpenTelemetry tracing and metrics for projecthub.
//
// The daemon exports spans for every workspace switch (workspace.switch,
// workspace.phase, workspace.hook) and HTTP request metrics to an OTLP
// collector over gRPC or HTTP/protobuf.
//
// # Usage
//
//	cfg := telemetry.NewDefaultConfig()
//	tel, err := telemetry.New(ctx, cfg, telemetry.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	tracer := tel.Tracer("projecthub/workspace")
//
// Telemetry never fails the daemon: exporter errors mark the instance
// degraded and tracers fall back to the global (no-op) provider.
//
// # Testing
//
// NewTestTelemetry records spans in memory and exposes a manual metric reader.
package telemetry
