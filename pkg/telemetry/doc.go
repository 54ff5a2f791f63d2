// Package telemetry provides observability instrumentation for mesa.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), and anonymous usage analytics into a unified
// system for monitoring and debugging mesa operations.
//
// # Architecture
//
// The telemetry system is built on three pillars:
//
//  1. Structured Logging - Context-aware logging with zerolog
//  2. Distributed Tracing - OpenTelemetry traces with multiple exporters
//  3. Usage Analytics - Batched command usage events
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceName = "mesa"
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
// Add telemetry to context:
//
//	ctx = tel.WithContext(ctx)
//
// # Structured Logging
//
// The logger provides component-specific logging with automatic context
// propagation:
//
//	logger := tel.Logger.NewComponentLogger("config")
//	logger = logger.WithGateway("production").WithEnvironment("dev")
//	logger.Info("Resolving gateway")
//	logger.WithError(err).Error("Gateway resolution failed")
//
// Log levels: trace, debug, info, warn, error, fatal
//
// # Distributed Tracing
//
// Tracing provides visibility into command flow and performance:
//
//	ctx, span := tel.Tracer.Start(ctx, "operation.name")
//	defer span.End()
//
//	span.SetAttributes(
//	    attribute.String("gateway.name", gateway),
//	)
//
//	if err != nil {
//	    telemetry.RecordError(span, err)
//	}
//
// Supported exporters: OTLP (production), Stdout (debug mode), None (testing)
//
// # Usage Analytics
//
// The analytics collector buffers usage events and flushes them in batches,
// either to JSONL files under the mesa home directory or to a configured
// HTTP endpoint. Events never block or fail the command that produced them,
// and collection honors the MESA_NO_ANALYTICS environment variable.
//
//	tel.Analytics.EmitCommandStarted("validate", gateway)
//	tel.Analytics.EmitCommandCompleted("validate", gateway, duration)
//
// # Context Helpers
//
// High-level helpers simplify common instrumentation patterns:
//
//	// Instrument an operation
//	ic := telemetry.StartOperation(ctx, "config.load",
//	    attribute.String("project.dir", dir))
//	defer ic.End(err)
//
//	// Command context
//	ctx = telemetry.WithCommandContext(ctx, "validate", gateway)
//	defer telemetry.EndCommandContext(ctx, "validate", gateway, err)
//
//	// Gateway operation
//	err := telemetry.RecordGatewayOperation(ctx, gateway, "ping", func(ctx context.Context) error {
//	    return db.PingContext(ctx)
//	})
//
// # Graceful Shutdown
//
// Always shut down telemetry gracefully to flush pending data:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	if err := tel.Shutdown(ctx); err != nil {
//	    log.Printf("Telemetry shutdown error: %v", err)
//	}
//
// This ensures all buffered analytics events are flushed and all pending
// traces are exported.
//
// # Security Considerations
//
//   - Never log sensitive data (credentials, keys, tokens)
//   - Connection settings are redacted before they are logged or printed
//   - Use secure connections (TLS) for trace exporters in production
package telemetry
