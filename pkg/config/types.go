package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// SuffixTarget controls where the environment name is appended when naming
// views of a non-default environment.
type SuffixTarget string

// Supported suffix targets.
const (
	SuffixTargetSchema  SuffixTarget = "schema"
	SuffixTargetTable   SuffixTarget = "table"
	SuffixTargetCatalog SuffixTarget = "catalog"
)

// ModelKind identifies how a model materializes.
type ModelKind string

// Supported model kinds.
const (
	ModelKindFull                   ModelKind = "full"
	ModelKindView                   ModelKind = "view"
	ModelKindIncrementalByTimeRange ModelKind = "incremental_by_time_range"
	ModelKindEmbedded               ModelKind = "embedded"
)

// DestructiveChangeAction controls how destructive schema changes to
// forward-only models are handled.
type DestructiveChangeAction string

// Supported destructive change actions.
const (
	DestructiveChangeError DestructiveChangeAction = "error"
	DestructiveChangeWarn  DestructiveChangeAction = "warn"
	DestructiveChangeAllow DestructiveChangeAction = "allow"
)

// Config is the fully merged and resolved mesa configuration for a project.
type Config struct {
	// Project is the project name, used to scope state and snapshots.
	Project string `yaml:"project,omitempty" json:"project,omitempty" validate:"omitempty,project_name"`

	// Gateways maps gateway names to their configuration.
	Gateways map[string]*GatewayConfig `yaml:"gateways,omitempty" json:"gateways,omitempty"`

	// DefaultGateway selects the gateway used when --gateway is not given.
	DefaultGateway string `yaml:"default_gateway,omitempty" json:"default_gateway,omitempty"`

	// DefaultConnection is the fallback warehouse connection for gateways
	// that do not define their own.
	DefaultConnection *Connection `yaml:"default_connection,omitempty" json:"default_connection,omitempty"`

	// DefaultTestConnection is the fallback connection for running unit tests.
	DefaultTestConnection *Connection `yaml:"default_test_connection,omitempty" json:"default_test_connection,omitempty"`

	// DefaultScheduler is the fallback scheduler for gateways that do not
	// define their own.
	DefaultScheduler *Scheduler `yaml:"default_scheduler,omitempty" json:"default_scheduler,omitempty"`

	// ModelDefaults supplies per-model defaults applied to every model.
	ModelDefaults ModelDefaultsConfig `yaml:"model_defaults,omitempty" json:"model_defaults,omitempty"`

	// Variables are project-wide variables available to models.
	Variables map[string]interface{} `yaml:"variables,omitempty" json:"variables,omitempty"`

	// PhysicalSchemaMapping overrides the physical schema per model schema.
	// Entries are tried in order; the first regex matching the model's
	// schema wins.
	PhysicalSchemaMapping []SchemaMapping `yaml:"physical_schema_mapping,omitempty" json:"physical_schema_mapping,omitempty"`

	// SnapshotTTL is how long unreferenced snapshots are retained.
	SnapshotTTL Duration `yaml:"snapshot_ttl,omitempty" json:"snapshot_ttl,omitempty"`

	// TimeColumnFormat is the strftime format for time columns.
	TimeColumnFormat string `yaml:"time_column_format,omitempty" json:"time_column_format,omitempty"`

	// IgnorePatterns lists glob patterns of files excluded from loading.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty" json:"ignore_patterns,omitempty"`

	// Users lists the users known to the project.
	Users []UserConfig `yaml:"users,omitempty" json:"users,omitempty"`

	// NotificationTargets lists project-level notification targets.
	NotificationTargets []NotificationTarget `yaml:"notification_targets,omitempty" json:"notification_targets,omitempty"`

	// Plan configures plan behavior and change auto-categorization.
	Plan PlanConfig `yaml:"plan,omitempty" json:"plan,omitempty"`

	// Linter configures model linting.
	Linter LinterConfig `yaml:"linter,omitempty" json:"linter,omitempty"`

	// Policies configures guardrail policy loading.
	Policies PoliciesConfig `yaml:"policies,omitempty" json:"policies,omitempty"`

	// Telemetry configures logging, tracing and usage analytics.
	Telemetry TelemetryConfig `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`

	// DefaultTargetEnvironment is the environment plans target by default.
	DefaultTargetEnvironment string `yaml:"default_target_environment,omitempty" json:"default_target_environment,omitempty"`

	// EnvironmentTTL is how long non-default environments live without a plan.
	EnvironmentTTL Duration `yaml:"environment_ttl,omitempty" json:"environment_ttl,omitempty"`

	// EnvironmentSuffixTarget controls where environment names are appended.
	EnvironmentSuffixTarget SuffixTarget `yaml:"environment_suffix_target,omitempty" json:"environment_suffix_target,omitempty" validate:"omitempty,oneof=schema table catalog"`

	// EnvironmentCatalogMapping maps environment names to catalogs. Entries
	// are tried in order; the first regex matching the environment wins.
	EnvironmentCatalogMapping []CatalogMapping `yaml:"environment_catalog_mapping,omitempty" json:"environment_catalog_mapping,omitempty"`

	// PinnedEnvironments lists environments the janitor never deletes. The
	// default target environment is always pinned.
	PinnedEnvironments []string `yaml:"pinned_environments,omitempty" json:"pinned_environments,omitempty"`

	// sourceFiles records the files this config was loaded from.
	sourceFiles []string
}

// GatewayConfig is a named bundle of connections and scheduler used to run
// a project against one warehouse.
type GatewayConfig struct {
	// Connection is the warehouse connection models run against.
	Connection *Connection `yaml:"connection,omitempty" json:"connection,omitempty"`

	// StateConnection stores mesa state. Falls back to Connection.
	StateConnection *Connection `yaml:"state_connection,omitempty" json:"state_connection,omitempty"`

	// TestConnection runs unit tests. Falls back to the project default.
	TestConnection *Connection `yaml:"test_connection,omitempty" json:"test_connection,omitempty"`

	// Scheduler runs scheduled work. Falls back to the project default.
	Scheduler *Scheduler `yaml:"scheduler,omitempty" json:"scheduler,omitempty"`

	// StateSchema is the schema state tables live in.
	StateSchema string `yaml:"state_schema,omitempty" json:"state_schema,omitempty"`

	// Variables overlay project variables for this gateway.
	Variables map[string]interface{} `yaml:"variables,omitempty" json:"variables,omitempty"`
}

// ModelDefaultsConfig supplies defaults applied to every model in the project.
type ModelDefaultsConfig struct {
	// Dialect is the SQL dialect models are written in.
	Dialect string `yaml:"dialect,omitempty" json:"dialect,omitempty" validate:"required"`

	// Kind is the default materialization kind.
	Kind ModelKind `yaml:"kind,omitempty" json:"kind,omitempty" validate:"omitempty,oneof=full view incremental_by_time_range embedded"`

	// Cron is the default evaluation schedule.
	Cron string `yaml:"cron,omitempty" json:"cron,omitempty"`

	// Owner is the default model owner.
	Owner string `yaml:"owner,omitempty" json:"owner,omitempty"`

	// Start is the default start date (YYYY-MM-DD or RFC 3339).
	Start string `yaml:"start,omitempty" json:"start,omitempty" validate:"omitempty,start_date"`

	// StorageFormat is the default storage format for engines that support it.
	StorageFormat string `yaml:"storage_format,omitempty" json:"storage_format,omitempty"`

	// OnDestructiveChange controls handling of destructive changes.
	OnDestructiveChange DestructiveChangeAction `yaml:"on_destructive_change,omitempty" json:"on_destructive_change,omitempty" validate:"omitempty,oneof=error warn allow"`
}

// PlanConfig configures plan behavior.
type PlanConfig struct {
	// AutoCategorizeChanges sets the auto-categorization mode per model
	// source type.
	AutoCategorizeChanges CategorizerConfig `yaml:"auto_categorize_changes,omitempty" json:"auto_categorize_changes,omitempty"`

	// IncludeUnmodified includes unmodified models in plan output.
	IncludeUnmodified bool `yaml:"include_unmodified,omitempty" json:"include_unmodified,omitempty"`

	// AutoApply applies plans without prompting.
	AutoApply bool `yaml:"auto_apply,omitempty" json:"auto_apply,omitempty"`

	// ForwardOnly makes every change forward-only.
	ForwardOnly bool `yaml:"forward_only,omitempty" json:"forward_only,omitempty"`
}

// PoliciesConfig configures guardrail policy loading.
type PoliciesConfig struct {
	// Paths lists .rego/.json policy files or directories to load.
	Paths []string `yaml:"paths,omitempty" json:"paths,omitempty"`

	// Disabled lists policy names that are not evaluated.
	Disabled []string `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// TelemetryConfig is the telemetry surface of the project config.
type TelemetryConfig struct {
	// Logging configures log level, format and output.
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`

	// Tracing configures trace export.
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`

	// Analytics configures usage analytics collection.
	Analytics AnalyticsConfig `yaml:"analytics,omitempty" json:"analytics,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string `yaml:"level,omitempty" json:"level,omitempty" validate:"omitempty,oneof=trace debug info warn error fatal"`

	// Format is console or json.
	Format string `yaml:"format,omitempty" json:"format,omitempty" validate:"omitempty,oneof=console json"`

	// Output is stderr, stdout or a file path.
	Output string `yaml:"output,omitempty" json:"output,omitempty"`
}

// TracingConfig configures trace export.
type TracingConfig struct {
	// Enabled turns tracing on.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Exporter is stdout, otlp or none.
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty" validate:"omitempty,oneof=stdout otlp none"`

	// Endpoint is the OTLP gRPC endpoint.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`

	// Insecure disables TLS to the endpoint.
	Insecure bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`

	// SamplingRate is the trace sampling rate (0.0 to 1.0).
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" validate:"omitempty,gte=0,lte=1"`

	// Headers are extra headers sent to the OTLP endpoint.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
}

// AnalyticsConfig configures usage analytics collection.
type AnalyticsConfig struct {
	// Enabled turns analytics collection on.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Endpoint posts events over HTTP instead of the local JSONL sink.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" validate:"omitempty,url"`

	// BufferSize is the event buffer size.
	BufferSize int `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty" validate:"omitempty,gt=0"`

	// FlushInterval is how often buffered events are flushed.
	FlushInterval Duration `yaml:"flush_interval,omitempty" json:"flush_interval,omitempty"`
}

// SchemaMapping maps model schemas matching a regex to a physical schema.
type SchemaMapping struct {
	// Pattern is the regex matched against the model's schema name.
	Pattern string `yaml:"pattern" json:"pattern" validate:"required"`

	// Schema is the physical schema used when the pattern matches.
	Schema string `yaml:"schema" json:"schema" validate:"required"`

	re *regexp.Regexp
}

// Matches reports whether the compiled pattern matches the schema name.
func (m *SchemaMapping) Matches(schema string) bool {
	return m.re != nil && m.re.MatchString(schema)
}

// CatalogMapping maps environment names matching a regex to a catalog.
type CatalogMapping struct {
	// Pattern is the regex matched against the environment name.
	Pattern string `yaml:"pattern" json:"pattern" validate:"required"`

	// Catalog is the catalog used when the pattern matches.
	Catalog string `yaml:"catalog" json:"catalog" validate:"required"`

	re *regexp.Regexp
}

// Matches reports whether the compiled pattern matches the environment name.
func (m *CatalogMapping) Matches(environment string) bool {
	return m.re != nil && m.re.MatchString(environment)
}

// SourceFiles returns the files this config was loaded from, in load order.
func (c *Config) SourceFiles() []string {
	return c.sourceFiles
}

// GatewayNames returns the configured gateway names in lexical order.
func (c *Config) GatewayNames() []string {
	names := make([]string, 0, len(c.Gateways))
	for name := range c.Gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationError represents a validation error with location information.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the config path to the error (e.g., "gateways.prod.connection").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning, info).
	Severity string `json:"severity"`
}

// Error renders the validation error with its location.
func (e ValidationError) Error() string {
	var b strings.Builder
	if e.File != "" {
		b.WriteString(e.File)
		if e.Line > 0 {
			fmt.Fprintf(&b, ":%d", e.Line)
			if e.Column > 0 {
				fmt.Fprintf(&b, ":%d", e.Column)
			}
		}
		b.WriteString(": ")
	}
	if e.Path != "" {
		fmt.Fprintf(&b, "%s: ", e.Path)
	}
	b.WriteString(e.Message)
	return b.String()
}

// ValidationErrors aggregates validation errors from a full load pass.
type ValidationErrors []ValidationError

// Error renders all errors, one per line.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d validation error(s):", len(e))
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// HasErrors reports whether any entry has severity error.
func (e ValidationErrors) HasErrors() bool {
	for _, err := range e {
		if err.Severity == "error" {
			return true
		}
	}
	return false
}

// Warnings returns only the entries with severity warning.
func (e ValidationErrors) Warnings() ValidationErrors {
	var out ValidationErrors
	for _, err := range e {
		if err.Severity == "warning" {
			out = append(out, err)
		}
	}
	return out
}
