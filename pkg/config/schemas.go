package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	ctx := cuecontext.New()
	sr := &SchemaRegistry{
		ctx:     ctx,
		schemas: make(map[string]cue.Value),
	}

	sr.registerBuiltInSchemas()

	return sr
}

// registerBuiltInSchemas registers all built-in schemas.
func (sr *SchemaRegistry) registerBuiltInSchemas() {
	sr.RegisterSchema("config", builtinConfigSchema, "#Config")
	sr.RegisterSchema("connection", builtinConfigSchema, "#Connection")
	sr.RegisterSchema("gateway", builtinConfigSchema, "#Gateway")
	sr.RegisterSchema("scheduler", builtinConfigSchema, "#Scheduler")
}

// RegisterSchema compiles source and registers the named definition under
// name.
func (sr *SchemaRegistry) RegisterSchema(name, source, definition string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	compiled := sr.ctx.CompileString(source)
	if err := compiled.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	val := compiled.LookupPath(cue.ParsePath(definition))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to look up %s in schema %s: %w", definition, name, err)
	}

	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema validates data against a named schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	dataVal := sr.ctx.Encode(data)
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	unified := schema.Unify(dataVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// ValidateConfigTree validates a merged config tree against the closed
// config schema and returns one ValidationError per violation. Unknown
// keys, type mismatches and bad enum values all surface here with their
// config path.
func (sr *SchemaRegistry) ValidateConfigTree(ctx context.Context, tree map[string]interface{}) ValidationErrors {
	schema, ok := sr.GetSchema("config")
	if !ok {
		return ValidationErrors{{Message: "config schema not registered", Severity: "error"}}
	}

	dataVal := sr.ctx.Encode(tree)
	if err := dataVal.Err(); err != nil {
		return ValidationErrors{{
			Message:  fmt.Sprintf("failed to encode config tree: %v", err),
			Severity: "error",
		}}
	}

	unified := schema.Unify(dataVal)
	err := unified.Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var out ValidationErrors
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Message:  e.Error(),
			Severity: "error",
		}

		if path := e.Path(); len(path) > 0 {
			ve.Path = strings.Join(path, ".")
			// The rendered message repeats the path, keep just the text
			format, args := e.Msg()
			if format != "" {
				ve.Message = fmt.Sprintf(format, args...)
			}
		}

		if pos := e.Position(); pos.IsValid() {
			ve.File = pos.Filename()
			ve.Line = pos.Line()
			ve.Column = pos.Column()
		}

		out = append(out, ve)
	}
	return out
}

// ListSchemas returns all registered schema names.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	return names
}

// builtinConfigSchema is the closed schema for the merged config tree.
// Definitions are closed, so unknown keys fail validation. Requiredness
// and cross-field rules are enforced after decoding, which keeps these
// checks structural: key closure, value types, enum membership.
const builtinConfigSchema = `
// Compact duration such as "30s", "12h", "1d12h" or "1w"
#Duration: string & =~"^([0-9]+[smhdw])+$"

#SQLiteConnection: {
	type:             "sqlite"
	database?:        string
	catalogs?:        {[string]: string}
	concurrent_tasks?: int & >0
}

#PostgresConnection: {
	type:             "postgres"
	host?:            string
	port?:            int & >0 & <=65535
	user?:            string
	password?:        string
	database?:        string
	sslmode?:         "disable" | "require" | "verify-ca" | "verify-full"
	connect_timeout?: #Duration
	concurrent_tasks?: int & >0
}

#Connection: #SQLiteConnection | #PostgresConnection

#BuiltinScheduler: {
	type: "builtin"
}

#RemoteScheduler: {
	type:     "remote"
	url?:     string
	token?:   string
	timeout?: #Duration
}

#Scheduler: #BuiltinScheduler | #RemoteScheduler

#Gateway: {
	connection?:       #Connection
	state_connection?: #Connection
	test_connection?:  #Connection
	scheduler?:        #Scheduler
	state_schema?:     string
	variables?:        {[string]: _}
}

#SchemaMapping: {
	pattern: string
	schema:  string
}

#CatalogMapping: {
	pattern: string
	catalog: string
}

#ModelDefaults: {
	dialect?:               string
	kind?:                  "full" | "view" | "incremental_by_time_range" | "embedded"
	cron?:                  string
	owner?:                 string
	start?:                 string
	storage_format?:        string
	on_destructive_change?: "error" | "warn" | "allow"
}

#CategorizationMode: "full" | "semi" | "off"

#Categorizer: {
	sql?:      #CategorizationMode
	seed?:     #CategorizationMode
	external?: #CategorizationMode
	starlark?: #CategorizationMode
}

#Plan: {
	auto_categorize_changes?: #Categorizer
	include_unmodified?:      bool
	auto_apply?:              bool
	forward_only?:            bool
}

#Linter: {
	enabled?:       bool
	rules?:         [...string]
	warn_rules?:    [...string]
	ignored_rules?: [...string]
}

#Policies: {
	paths?:    [...string]
	disabled?: [...string]
}

#NotificationEvent: "apply_start" | "apply_end" | "apply_failure" |
	"run_start" | "run_end" | "run_failure" | "audit_failure"

#SlackWebhookTarget: {
	type:       "slack_webhook"
	url?:       string
	notify_on?: [...#NotificationEvent]
}

#SlackAPITarget: {
	type:       "slack_api"
	token?:     string
	channel?:   string
	notify_on?: [...#NotificationEvent]
}

#SMTPTarget: {
	type:        "smtp"
	host?:       string
	port?:       int & >0 & <=65535
	user?:       string
	password?:   string
	sender?:     string
	recipients?: [...string]
	notify_on?:  [...#NotificationEvent]
}

#NotificationTarget: #SlackWebhookTarget | #SlackAPITarget | #SMTPTarget

#User: {
	username:              string
	roles?:                [...("required_approver")]
	notification_targets?: [...#NotificationTarget]
}

#Telemetry: {
	logging?: {
		level?:  "trace" | "debug" | "info" | "warn" | "error" | "fatal"
		format?: "console" | "json"
		output?: string
	}
	tracing?: {
		enabled?:       bool
		exporter?:      "stdout" | "otlp" | "none"
		endpoint?:      string
		insecure?:      bool
		sampling_rate?: number & >=0 & <=1
		headers?:       {[string]: string}
	}
	analytics?: {
		enabled?:        bool
		endpoint?:       string
		buffer_size?:    int & >0
		flush_interval?: #Duration
	}
}

#Config: {
	project?:                 string & =~"^[a-z][a-z0-9_]*$"
	gateways?:                {[string]: #Gateway}
	default_gateway?:         string
	default_connection?:      #Connection
	default_test_connection?: #Connection
	default_scheduler?:       #Scheduler
	model_defaults?:          #ModelDefaults
	variables?:               {[string]: _}
	physical_schema_mapping?: [...#SchemaMapping]
	snapshot_ttl?:            #Duration
	time_column_format?:      string
	ignore_patterns?:         [...string]
	users?:                   [...#User]
	notification_targets?:    [...#NotificationTarget]
	plan?:                    #Plan
	linter?:                  #Linter
	policies?:                #Policies
	telemetry?:               #Telemetry

	default_target_environment?:  string
	environment_ttl?:             #Duration
	environment_suffix_target?:   "schema" | "table" | "catalog"
	environment_catalog_mapping?: [...#CatalogMapping]
	pinned_environments?:         [...string]
}
`
