// Package telemetry provides OpenTelemetry tracing and metrics for orctasks.
//
// When observability.enable_telemetry is set, New builds OTLP trace and
// metric providers (gRPC or HTTP/protobuf) and installs them globally so
// that tool dispatch spans and orctasks.tools.* instruments are exported.
// When disabled, Tracer and Meter fall back to the global no-op providers.
//
// Usage:
//
//	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version))
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
// Telemetry failures never stop the server. A provider that cannot be
// built leaves the instance degraded; Health reports why.
//
// Tests use NewRecorder, which keeps spans and metrics in memory.
package telemetry
