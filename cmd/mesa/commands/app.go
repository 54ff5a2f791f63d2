package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/mesadata/mesa/pkg/config"
	"github.com/mesadata/mesa/pkg/state"
	"github.com/mesadata/mesa/pkg/telemetry"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds telemetry flushing when a command finishes.
const shutdownTimeout = 5 * time.Second

// app bundles the loaded project and its telemetry for one command run.
type app struct {
	result *config.LoadResult
	config *config.Config
	tel    *telemetry.Telemetry
}

// loadProject loads the project config using the global flags.
func loadProject(ctx context.Context) (*config.LoadResult, error) {
	loader := config.NewLoader()
	return loader.Load(ctx, config.LoadOptions{
		ProjectDir: projectDir,
		ConfigName: configName,
	})
}

// openProject loads the project config and starts telemetry from its
// telemetry domain. Validation errors fail the load.
func openProject(ctx context.Context) (*app, error) {
	result, err := loadProject(ctx)
	if err != nil {
		return nil, err
	}

	tel, err := telemetry.NewTelemetry(telemetryConfig(result.Config))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return &app{result: result, config: result.Config, tel: tel}, nil
}

// run loads the project and runs fn with a command span and usage events
// around it. Used by every command that needs a loaded config.
func run(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	a, err := openProject(cmd.Context())
	if err != nil {
		return err
	}

	ctx := a.tel.WithContext(cmd.Context())
	defer a.shutdown()

	name := cmd.Name()
	ctx, span := a.tel.Tracer.StartCommandSpan(ctx, name)
	defer span.End()

	start := time.Now()
	_ = a.tel.Analytics.EmitCommandStarted(name, gatewayName)

	if err := fn(ctx, a); err != nil {
		telemetry.RecordError(span, err)
		_ = a.tel.Analytics.EmitCommandFailed(name, gatewayName, err.Error())
		return err
	}

	telemetry.RecordSuccess(span)
	_ = a.tel.Analytics.EmitCommandCompleted(name, gatewayName, time.Since(start))
	return nil
}

// shutdown flushes telemetry with its own deadline. The command context may
// already be cancelled by an interrupt.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = a.tel.Shutdown(ctx)
}

// telemetryConfig overlays the config file's telemetry domain onto the
// defaults. MESA_DEBUG starts from the debug defaults; unset file values
// keep the defaults so zero and unset stay distinguishable.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.DefaultConfig()
	if config.DebugEnabled() {
		tc = telemetry.DebugConfig()
	}
	tc.ServiceVersion = buildVersion

	if home, err := config.HomeDir(); err == nil {
		tc.Analytics.Directory = filepath.Join(home, "analytics")
	}

	if cfg == nil {
		applyFlagOverrides(tc)
		return tc
	}

	file := cfg.Telemetry
	if file.Logging.Level != "" {
		tc.Logging.Level = file.Logging.Level
	}
	if file.Logging.Format != "" {
		tc.Logging.Format = file.Logging.Format
	}
	if file.Logging.Output != "" {
		tc.Logging.Output = file.Logging.Output
	}

	if file.Tracing.Enabled {
		tc.Tracing.Enabled = true
	}
	if file.Tracing.Exporter != "" {
		tc.Tracing.Exporter = file.Tracing.Exporter
	}
	if file.Tracing.Endpoint != "" {
		tc.Tracing.Endpoint = file.Tracing.Endpoint
	}
	if file.Tracing.Insecure {
		tc.Tracing.Insecure = true
	}
	if file.Tracing.SamplingRate > 0 {
		tc.Tracing.SamplingRate = file.Tracing.SamplingRate
	}
	for k, v := range file.Tracing.Headers {
		tc.Tracing.Headers[k] = v
	}

	if file.Analytics.Enabled != nil {
		tc.Analytics.Enabled = *file.Analytics.Enabled
	}
	if file.Analytics.Endpoint != "" {
		tc.Analytics.Endpoint = file.Analytics.Endpoint
	}
	if file.Analytics.BufferSize > 0 {
		tc.Analytics.BufferSize = file.Analytics.BufferSize
	}
	if d := file.Analytics.FlushInterval.Std(); d > 0 {
		tc.Analytics.FlushInterval = d
	}

	applyFlagOverrides(tc)
	return tc
}

// applyFlagOverrides applies flag and environment overrides that beat the
// config file.
func applyFlagOverrides(tc *telemetry.Config) {
	if verbose {
		tc.Logging.Level = "debug"
	}
	if config.AnalyticsDisabled() {
		tc.Analytics.Enabled = false
	}
}

// openStore opens the state store for the selected gateway. State records
// are scoped by project, so a config without a project name is refused.
func openStore(ctx context.Context, cfg *config.Config) (*state.DBStore, *config.ResolvedGateway, error) {
	if err := cfg.RequireProject(); err != nil {
		return nil, nil, err
	}

	gw, err := cfg.ResolveGateway(gatewayName)
	if err != nil {
		return nil, nil, err
	}

	store, err := state.NewStore(gw.StateConnection, gw.StateSchema)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, nil, err
	}
	return store, gw, nil
}

// openMigratedStore opens the state store and refuses to proceed when the
// state schema has never been migrated.
func openMigratedStore(ctx context.Context, cfg *config.Config) (*state.DBStore, *config.ResolvedGateway, error) {
	store, gw, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	_, ok, err := store.SchemaVersion(ctx)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	if !ok {
		_ = store.Close()
		return nil, nil, fmt.Errorf("state schema is not initialized, run 'mesa migrate' first")
	}
	return store, gw, nil
}

// protectedEnvironments returns the environment names the janitor must
// never delete: the default target environment and config-pinned names.
func protectedEnvironments(cfg *config.Config) []string {
	protected := []string{cfg.DefaultTargetEnvironment}
	protected = append(protected, cfg.PinnedEnvironments...)
	return protected
}
