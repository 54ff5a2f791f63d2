// Package config loads, merges and validates mesa project configuration
// from YAML files, Starlark files and environment variables.
//
// # Overview
//
// The config package implements the configuration phase of mesa. It
// discovers config files in the project directory and the user config
// directory, merges them with environment overrides, validates the merged
// tree against a closed CUE schema and decodes it into typed structures.
//
// # Sources and precedence
//
// Configuration is read from three sources, in ascending precedence:
//
//   - config.yaml (or config.yml) and config.star in the project directory
//   - config.yaml (or config.yml) and config.star in ~/.mesa
//   - MESA__ environment variables
//
// Within one directory a config.star file overlays the YAML file. A later
// source overrides scalar values and lists of an earlier one; nested maps
// merge key by key.
//
// # Environment overrides
//
// Any config value can be overridden with an environment variable using
// the MESA__ prefix and double underscores as path separators:
//
//	MESA__DEFAULT_GATEWAY=prod
//	MESA__GATEWAYS__PROD__CONNECTION__HOST=db.internal
//
// Values are parsed as YAML scalars, so "5" becomes an int and "true" a
// bool. MESA_DEBUG, MESA_HOME and MESA_NO_ANALYTICS are process settings,
// not config overrides.
//
// # Usage Example
//
//	loader := config.NewLoader()
//	result, err := loader.Load(ctx, config.LoadOptions{ProjectDir: "."})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	cfg := result.Config
//	gateway, err := cfg.ResolveGateway("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, err := gateway.Connection.Connect(ctx)
//
// # Starlark configs
//
// A config.star file must define a dict global named "config" (or the
// name selected with --config). Helper functions and underscore-prefixed
// globals are ignored. The env_var built-in reads process environment
// variables with an optional default:
//
//	_host = env_var("DB_HOST", "localhost")
//
//	config = {
//	    "model_defaults": {"dialect": "postgres"},
//	    "gateways": {
//	        "prod": {
//	            "connection": {"type": "postgres", "host": _host, "database": "mesa"},
//	        },
//	    },
//	}
//
// Starlark execution is sandboxed: no filesystem access, no network
// access, a 30 second timeout and suppressed print output.
//
// # Validation
//
// The merged tree is validated in two passes. The CUE schema is closed,
// so unknown keys, type mismatches and bad enum values fail with their
// config path and, where available, file position. After decoding, field
// validation covers requiredness, cross-field rules and regex mappings.
// All violations of a load are reported together:
//
//	ValidationError{
//	    File: "config.yaml",
//	    Path: "gateways.prod.connection",
//	    Message: "2 errors in empty disjunction: ...",
//	    Severity: "error",
//	}
//
// # Gateways
//
// A gateway bundles the connections and scheduler used to run a project
// against one warehouse. ResolveGateway applies the documented fallback
// chain: a gateway without a connection uses default_connection, then an
// embedded in-memory SQLite database; state_connection falls back to the
// gateway's connection; test_connection falls back to
// default_test_connection, then in-memory SQLite.
//
// # Security
//
// Connection passwords, scheduler tokens and notification credentials are
// masked by Redacted before configuration is displayed or logged.
//
// # Thread Safety
//
// Loader and SchemaRegistry are safe for concurrent use. A Config is
// immutable after Load returns.
package config
