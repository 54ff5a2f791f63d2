package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// loadOptions returns options pinned to temp dirs so tests never touch the
// real user config.
func loadOptions(t *testing.T, projectDir string) LoadOptions {
	t.Helper()
	return LoadOptions{
		ProjectDir: projectDir,
		HomeDir:    t.TempDir(),
		Environ:    []string{},
	}
}

const minimalYAML = `
project: analytics
model_defaults:
  dialect: postgres
`

func TestLoader_LoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", `
project: analytics
default_gateway: prod
model_defaults:
  dialect: postgres
  owner: data_team
gateways:
  prod:
    connection:
      type: postgres
      host: db.internal
      port: 5439
      user: mesa
      password: hunter2
      database: warehouse
    state_connection:
      type: sqlite
      database: state.db
    state_schema: mesa_state
  dev:
    connection:
      type: sqlite
      database: dev.db
snapshot_ttl: 2w
environment_ttl: 3d
physical_schema_mapping:
  - pattern: "^staging_"
    schema: staging
`)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := result.Config

	if cfg.Project != "analytics" {
		t.Errorf("expected project 'analytics', got %q", cfg.Project)
	}
	if cfg.DefaultGateway != "prod" {
		t.Errorf("expected default gateway 'prod', got %q", cfg.DefaultGateway)
	}
	if cfg.SnapshotTTL.Std() != 14*24*time.Hour {
		t.Errorf("expected snapshot_ttl 2w, got %s", cfg.SnapshotTTL)
	}
	if cfg.EnvironmentTTL.Std() != 3*24*time.Hour {
		t.Errorf("expected environment_ttl 3d, got %s", cfg.EnvironmentTTL)
	}

	prod := cfg.Gateways["prod"]
	if prod == nil {
		t.Fatal("expected prod gateway")
	}
	pg, ok := prod.Connection.Config.(*PostgresConnectionConfig)
	if !ok {
		t.Fatalf("expected postgres connection, got %T", prod.Connection.Config)
	}
	if pg.Host != "db.internal" || pg.Port != 5439 {
		t.Errorf("unexpected postgres connection: %+v", pg)
	}
	if _, ok := prod.StateConnection.Config.(*SQLiteConnectionConfig); !ok {
		t.Fatalf("expected sqlite state connection, got %T", prod.StateConnection.Config)
	}
	if prod.StateSchema != "mesa_state" {
		t.Errorf("expected state_schema 'mesa_state', got %q", prod.StateSchema)
	}

	if len(cfg.PhysicalSchemaMapping) != 1 || !cfg.PhysicalSchemaMapping[0].Matches("staging_orders") {
		t.Errorf("expected compiled schema mapping, got %+v", cfg.PhysicalSchemaMapping)
	}

	if len(cfg.SourceFiles()) != 1 || filepath.Base(cfg.SourceFiles()[0]) != "config.yaml" {
		t.Errorf("unexpected source files: %v", cfg.SourceFiles())
	}
}

func TestLoader_LoadStarlark(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.star", `
_gateways = {}
for name in ["dev", "prod"]:
    _gateways[name] = {
        "connection": {"type": "sqlite", "database": name + ".db"},
    }

config = {
    "project": "analytics",
    "default_gateway": "prod",
    "model_defaults": {"dialect": "duckdb"},
    "gateways": _gateways,
}
`)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := result.Config

	if cfg.Project != "analytics" {
		t.Errorf("expected project 'analytics', got %q", cfg.Project)
	}
	if len(cfg.Gateways) != 2 {
		t.Errorf("expected 2 gateways, got %d", len(cfg.Gateways))
	}
	sqlite, ok := cfg.Gateways["prod"].Connection.Config.(*SQLiteConnectionConfig)
	if !ok {
		t.Fatalf("expected sqlite connection, got %T", cfg.Gateways["prod"].Connection.Config)
	}
	if sqlite.Database != "prod.db" {
		t.Errorf("expected database 'prod.db', got %q", sqlite.Database)
	}
}

// The same configuration written in YAML and in Starlark must load to the
// same result.
func TestLoader_SyntaxEquivalence(t *testing.T) {
	yamlDir := t.TempDir()
	writeConfigFile(t, yamlDir, "config.yaml", `
project: analytics
model_defaults:
  dialect: postgres
  kind: view
gateways:
  prod:
    connection:
      type: postgres
      host: db.internal
      database: warehouse
snapshot_ttl: 2w
environment_suffix_target: table
`)

	starDir := t.TempDir()
	writeConfigFile(t, starDir, "config.star", `
config = {
    "project": "analytics",
    "model_defaults": {"dialect": "postgres", "kind": "view"},
    "gateways": {
        "prod": {
            "connection": {
                "type": "postgres",
                "host": "db.internal",
                "database": "warehouse",
            },
        },
    },
    "snapshot_ttl": "2w",
    "environment_suffix_target": "table",
}
`)

	loader := NewLoader()
	fromYAML, err := loader.Load(context.Background(), loadOptions(t, yamlDir))
	if err != nil {
		t.Fatalf("yaml load failed: %v", err)
	}
	fromStar, err := loader.Load(context.Background(), loadOptions(t, starDir))
	if err != nil {
		t.Fatalf("starlark load failed: %v", err)
	}

	yamlTree, err := fromYAML.Config.Tree()
	if err != nil {
		t.Fatalf("failed to render yaml config tree: %v", err)
	}
	starTree, err := fromStar.Config.Tree()
	if err != nil {
		t.Fatalf("failed to render starlark config tree: %v", err)
	}

	yamlPg := fromYAML.Config.Gateways["prod"].Connection.Config.(*PostgresConnectionConfig)
	starPg := fromStar.Config.Gateways["prod"].Connection.Config.(*PostgresConnectionConfig)
	if *yamlPg != *starPg {
		t.Errorf("connections differ: yaml=%+v starlark=%+v", yamlPg, starPg)
	}

	for _, key := range []string{"project", "snapshot_ttl", "environment_suffix_target"} {
		yv, _ := GetPath(yamlTree, []string{key})
		sv, _ := GetPath(starTree, []string{key})
		if yv != sv {
			t.Errorf("%s differs: yaml=%v starlark=%v", key, yv, sv)
		}
	}
}

func TestLoader_StarlarkOverlaysYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", `
project: analytics
default_gateway: dev
model_defaults:
  dialect: postgres
variables:
  region: us-east-1
  tier: standard
`)
	writeConfigFile(t, dir, "config.star", `
config = {
    "default_gateway": "prod",
    "gateways": {"prod": {"connection": {"type": "sqlite", "database": "prod.db"}}},
    "variables": {"tier": "premium"},
}
`)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := result.Config

	// Starlark wins where both set a value
	if cfg.DefaultGateway != "prod" {
		t.Errorf("expected default gateway 'prod', got %q", cfg.DefaultGateway)
	}
	// YAML survives where Starlark is silent
	if cfg.Project != "analytics" {
		t.Errorf("expected project 'analytics', got %q", cfg.Project)
	}
	// Variable maps merge key-wise
	if cfg.Variables["region"] != "us-east-1" || cfg.Variables["tier"] != "premium" {
		t.Errorf("unexpected variables: %v", cfg.Variables)
	}
	if len(cfg.SourceFiles()) != 2 {
		t.Errorf("expected 2 source files, got %v", cfg.SourceFiles())
	}
}

func TestLoader_HomeOverridesProject(t *testing.T) {
	projectDir := t.TempDir()
	homeDir := t.TempDir()
	writeConfigFile(t, projectDir, "config.yaml", `
project: analytics
default_gateway: prod
model_defaults:
  dialect: postgres
gateways:
  prod:
    connection:
      type: postgres
      host: db.internal
      database: warehouse
`)
	writeConfigFile(t, homeDir, "config.yaml", `
default_gateway: local
gateways:
  local:
    connection:
      type: sqlite
      database: local.db
`)

	opts := loadOptions(t, projectDir)
	opts.HomeDir = homeDir
	result, err := NewLoader().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := result.Config

	if cfg.DefaultGateway != "local" {
		t.Errorf("expected home override 'local', got %q", cfg.DefaultGateway)
	}
	// Gateway maps merge, so both remain available
	if len(cfg.Gateways) != 2 {
		t.Errorf("expected 2 gateways, got %v", cfg.GatewayNames())
	}
	if cfg.Project != "analytics" {
		t.Errorf("expected project from project config, got %q", cfg.Project)
	}
}

func TestLoader_HomeSameAsProjectDir(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.star", `
config = {
    "project": "wrong",
    "model_defaults": {"dialect": "sqlite"},
}

pipelines = {
    "project": "analytics",
    "model_defaults": {"dialect": "postgres"},
}
`)

	// A trailing dot segment names the same directory; the user layer must
	// not re-load it under the default config name.
	result, err := NewLoader().Load(context.Background(), LoadOptions{
		ProjectDir: dir,
		HomeDir:    dir + string(os.PathSeparator) + ".",
		ConfigName: "pipelines",
		Environ:    []string{},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Config.Project != "analytics" {
		t.Errorf("expected project 'analytics', got %q", result.Config.Project)
	}
	if result.Config.ModelDefaults.Dialect != "postgres" {
		t.Errorf("expected dialect 'postgres', got %q", result.Config.ModelDefaults.Dialect)
	}
}

func TestSameDir(t *testing.T) {
	dir := t.TempDir()

	if !sameDir(dir, dir+string(os.PathSeparator)) {
		t.Error("expected trailing separator to name the same directory")
	}
	if !sameDir(dir, dir+string(os.PathSeparator)+".") {
		t.Error("expected dot segment to name the same directory")
	}
	if sameDir(dir, t.TempDir()) {
		t.Error("expected distinct directories to differ")
	}

	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(dir, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if !sameDir(dir, link) {
		t.Error("expected symlink to name the same directory")
	}
}

func TestLoader_EnvOverridesEverything(t *testing.T) {
	projectDir := t.TempDir()
	homeDir := t.TempDir()
	writeConfigFile(t, projectDir, "config.yaml", minimalYAML+`
gateways:
  prod:
    connection:
      type: postgres
      host: db.internal
      database: warehouse
    state_schema: from_project
`)
	writeConfigFile(t, homeDir, "config.yaml", `
gateways:
  prod:
    state_schema: from_home
`)

	opts := loadOptions(t, projectDir)
	opts.HomeDir = homeDir
	opts.Environ = []string{
		"MESA__GATEWAYS__PROD__STATE_SCHEMA=from_env",
		"MESA__GATEWAYS__PROD__CONNECTION__PORT=5439",
		"MESA__SNAPSHOT_TTL=4w",
	}

	result, err := NewLoader().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := result.Config

	if cfg.Gateways["prod"].StateSchema != "from_env" {
		t.Errorf("expected state_schema 'from_env', got %q", cfg.Gateways["prod"].StateSchema)
	}
	pg := cfg.Gateways["prod"].Connection.Config.(*PostgresConnectionConfig)
	if pg.Port != 5439 {
		t.Errorf("expected env-typed port 5439, got %d", pg.Port)
	}
	if pg.Host != "db.internal" {
		t.Errorf("expected host to survive the overlay, got %q", pg.Host)
	}
	if cfg.SnapshotTTL.Std() != 4*7*24*time.Hour {
		t.Errorf("expected snapshot_ttl 4w, got %s", cfg.SnapshotTTL)
	}
}

func TestLoader_UnknownKeyFails(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", minimalYAML+`
defalt_gateway: prod
`)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err == nil {
		t.Fatal("expected validation error for unknown key")
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T: %v", err, err)
	}
	found := false
	for _, e := range result.Issues {
		if strings.HasPrefix(e.Path, "defalt_gateway") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error at path 'defalt_gateway', got: %v", result.Issues)
	}
}

func TestLoader_MissingConfig(t *testing.T) {
	dir := t.TempDir()

	_, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err == nil {
		t.Fatal("expected error for missing config")
	}
	if !strings.Contains(err.Error(), "no config file found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoader_AllowMissingWithEnv(t *testing.T) {
	dir := t.TempDir()

	opts := loadOptions(t, dir)
	opts.AllowMissing = true
	opts.Environ = []string{"MESA__MODEL_DEFAULTS__DIALECT=duckdb"}

	result, err := NewLoader().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Config.ModelDefaults.Dialect != "duckdb" {
		t.Errorf("expected dialect from env, got %q", result.Config.ModelDefaults.Dialect)
	}
}

func TestLoader_NamedConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.star", `
config = {"project": "analytics", "model_defaults": {"dialect": "postgres"}}
ci_config = {"project": "analytics_ci", "model_defaults": {"dialect": "duckdb"}}
`)

	opts := loadOptions(t, dir)
	opts.ConfigName = "ci_config"
	result, err := NewLoader().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Config.Project != "analytics_ci" {
		t.Errorf("expected named config, got project %q", result.Config.Project)
	}

	opts.ConfigName = "nonexistent"
	_, err = NewLoader().Load(context.Background(), opts)
	if err == nil {
		t.Fatal("expected error for unknown config name")
	}
	if !strings.Contains(err.Error(), `"nonexistent"`) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoader_NamedConfigRequiresStarlark(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", minimalYAML)

	opts := loadOptions(t, dir)
	opts.ConfigName = "ci_config"
	_, err := NewLoader().Load(context.Background(), opts)
	if err == nil {
		t.Fatal("expected error when a named config is requested without config.star")
	}
}

func TestLoader_Defaults(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", minimalYAML+`
gateways:
  prod:
    connection:
      type: sqlite
      database: prod.db
`)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := result.Config

	if cfg.SnapshotTTL.Std() != 7*24*time.Hour {
		t.Errorf("expected default snapshot_ttl 1w, got %s", cfg.SnapshotTTL)
	}
	if cfg.EnvironmentTTL.Std() != 7*24*time.Hour {
		t.Errorf("expected default environment_ttl 1w, got %s", cfg.EnvironmentTTL)
	}
	if cfg.DefaultTargetEnvironment != "prod" {
		t.Errorf("expected default target environment 'prod', got %q", cfg.DefaultTargetEnvironment)
	}
	if cfg.EnvironmentSuffixTarget != SuffixTargetSchema {
		t.Errorf("expected default suffix target 'schema', got %q", cfg.EnvironmentSuffixTarget)
	}
	if cfg.TimeColumnFormat != "%Y-%m-%d" {
		t.Errorf("expected default time column format, got %q", cfg.TimeColumnFormat)
	}
	if cfg.DefaultGateway != "prod" {
		t.Errorf("expected single gateway to become the default, got %q", cfg.DefaultGateway)
	}
	if cfg.Gateways["prod"].StateSchema != DefaultStateSchema {
		t.Errorf("expected default state schema, got %q", cfg.Gateways["prod"].StateSchema)
	}
	if cfg.ModelDefaults.Kind != ModelKindFull {
		t.Errorf("expected default kind 'full', got %q", cfg.ModelDefaults.Kind)
	}
	if cfg.ModelDefaults.Cron != "@daily" {
		t.Errorf("expected default cron '@daily', got %q", cfg.ModelDefaults.Cron)
	}
	if cfg.ModelDefaults.OnDestructiveChange != DestructiveChangeError {
		t.Errorf("expected default on_destructive_change 'error', got %q", cfg.ModelDefaults.OnDestructiveChange)
	}
	if cfg.Plan.AutoCategorizeChanges.SQL != CategorizationFull {
		t.Errorf("expected default sql categorization 'full', got %q", cfg.Plan.AutoCategorizeChanges.SQL)
	}
	if cfg.Plan.AutoCategorizeChanges.Starlark != CategorizationOff {
		t.Errorf("expected default starlark categorization 'off', got %q", cfg.Plan.AutoCategorizeChanges.Starlark)
	}
}

func TestLoader_InvalidYAMLSyntax(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", "project: [unclosed\n")

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err == nil {
		t.Fatal("expected error for invalid yaml")
	}
	if len(result.Issues) == 0 || result.Issues[0].File == "" {
		t.Errorf("expected issue with file location, got: %v", result.Issues)
	}
}

func TestLoader_MissingDialectFails(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", `
project: analytics
`)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err == nil {
		t.Fatal("expected validation error for missing dialect")
	}
	found := false
	for _, e := range result.Issues {
		if e.Path == "model_defaults.dialect" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected error at model_defaults.dialect, got: %v", result.Issues)
	}
}

func TestLoader_YamlPreferredOverYml(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", minimalYAML)
	writeConfigFile(t, dir, "config.yml", `
project: ignored
model_defaults:
  dialect: duckdb
`)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Config.Project != "analytics" {
		t.Errorf("expected config.yaml to win, got project %q", result.Config.Project)
	}
	if len(result.Issues.Warnings()) == 0 {
		t.Error("expected a warning about the ignored config.yml")
	}
}

func TestLoader_YmlFallback(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yml", minimalYAML)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Config.Project != "analytics" {
		t.Errorf("expected config.yml to load, got project %q", result.Config.Project)
	}
}

func TestLoader_MalformedEnvWarning(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", minimalYAML)

	opts := loadOptions(t, dir)
	opts.Environ = []string{"MESA____BAD=1"}

	result, err := NewLoader().Load(context.Background(), opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Issues.Warnings()) == 0 {
		t.Error("expected a warning for the malformed override variable")
	}
}

func TestLoader_RawTreeExcludesFallbacks(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "config.yaml", minimalYAML+`
gateways:
  prod:
    connection:
      type: sqlite
      database: prod.db
`)

	result, err := NewLoader().Load(context.Background(), loadOptions(t, dir))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The raw tree reflects what the user wrote, not resolved fallbacks
	if _, ok := GetPath(result.Tree, []string{"gateways", "prod", "state_connection"}); ok {
		t.Error("expected raw tree to omit the state_connection fallback")
	}
	if _, ok := GetPath(result.Tree, []string{"snapshot_ttl"}); ok {
		t.Error("expected raw tree to omit defaulted snapshot_ttl")
	}
}
