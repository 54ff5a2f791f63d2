package config

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestStarlarkEvaluator_Evaluate(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name      string
		script    string
		checkFunc func(*testing.T, *StarlarkResult)
		wantErr   bool
	}{
		{
			name:   "simple config dict",
			script: `config = {"project": "analytics", "default_gateway": "prod"}`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				cfg, ok := sr.Globals["config"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected config to be a dict, got %T", sr.Globals["config"])
				}
				if cfg["project"] != "analytics" {
					t.Errorf("expected project='analytics', got %v", cfg["project"])
				}
			},
		},
		{
			name: "generate gateways with function",
			script: `
def make_gateways(names):
    gateways = {}
    for name in names:
        gateways[name] = {
            "connection": {"type": "sqlite", "database": name + ".db"},
        }
    return gateways

config = {"gateways": make_gateways(["dev", "prod"])}
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				cfg := sr.Globals["config"].(map[string]interface{})
				gateways, ok := cfg["gateways"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected gateways to be a dict, got %T", cfg["gateways"])
				}
				if len(gateways) != 2 {
					t.Errorf("expected 2 gateways, got %d", len(gateways))
				}
				prod, ok := gateways["prod"].(map[string]interface{})
				if !ok {
					t.Fatalf("expected prod gateway to be a dict")
				}
				conn := prod["connection"].(map[string]interface{})
				if conn["database"] != "prod.db" {
					t.Errorf("expected database='prod.db', got %v", conn["database"])
				}
			},
		},
		{
			name: "list comprehension",
			script: `
config = {
    "pinned_environments": ["env_" + str(i) for i in range(3)],
}
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				cfg := sr.Globals["config"].(map[string]interface{})
				pinned, ok := cfg["pinned_environments"].([]interface{})
				if !ok {
					t.Fatalf("expected pinned_environments to be a list")
				}
				if len(pinned) != 3 {
					t.Errorf("expected 3 entries, got %d", len(pinned))
				}
				if pinned[0] != "env_0" {
					t.Errorf("unexpected first entry: %v", pinned[0])
				}
			},
		},
		{
			name: "underscore globals are hidden",
			script: `
_host = "db.internal"
config = {"gateways": {"prod": {"connection": {"type": "postgres", "host": _host}}}}
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if _, ok := sr.Globals["_host"]; ok {
					t.Error("expected _host to be filtered from globals")
				}
				if _, ok := sr.Globals["config"]; !ok {
					t.Error("expected config global to be present")
				}
			},
		},
		{
			name: "helper functions are hidden",
			script: `
def helper():
    return 1

config = {"project": "demo"}
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if _, ok := sr.Globals["helper"]; ok {
					t.Error("expected helper function to be filtered from globals")
				}
			},
		},
		{
			name:    "syntax error",
			script:  `invalid syntax here`,
			wantErr: true,
		},
		{
			name:    "runtime error",
			script:  `config = undefined_variable`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, "config.star", tt.script)

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Error != "" {
				t.Errorf("unexpected result error: %s", result.Error)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, result)
			}
			if result.ExecutionTime == 0 {
				t.Error("expected non-zero execution time")
			}
		})
	}
}

func TestStarlarkEvaluator_EnvVar(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	evaluator.lookupEnv = environLookup([]string{"DB_HOST=db.internal"})
	ctx := context.Background()

	script := `
host = env_var("DB_HOST")
fallback = env_var("DB_PORT", "5432")
missing = env_var("DB_USER")
`

	result, err := evaluator.Evaluate(ctx, "config.star", script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Globals["host"] != "db.internal" {
		t.Errorf("expected host='db.internal', got %v", result.Globals["host"])
	}
	if result.Globals["fallback"] != "5432" {
		t.Errorf("expected fallback='5432', got %v", result.Globals["fallback"])
	}
	if result.Globals["missing"] != nil {
		t.Errorf("expected missing=nil, got %v", result.Globals["missing"])
	}
}

func TestStarlarkEvaluator_Timeout(t *testing.T) {
	evaluator := NewStarlarkEvaluator(100 * time.Millisecond)
	ctx := context.Background()

	// Script that takes too long
	script := `
def slow_function():
    result = 0
    for i in range(10000000):
        result = result + i
    return result

config = {"x": slow_function()}
`

	_, err := evaluator.Evaluate(ctx, "config.star", script)
	if err == nil {
		t.Error("expected timeout error")
	}
}

func TestStarlarkEvaluator_CanceledContext(t *testing.T) {
	evaluator := NewStarlarkEvaluator(30 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	script := `
def slow_function():
    result = 0
    for i in range(10000000):
        result = result + i
    return result

config = {"x": slow_function()}
`

	_, err := evaluator.Evaluate(ctx, "config.star", script)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if strings.Contains(err.Error(), "timeout") {
		t.Errorf("cancellation reported as timeout: %v", err)
	}
}

func TestStarlarkEvaluator_PrintSuppressed(t *testing.T) {
	evaluator := NewStarlarkEvaluator(5 * time.Second)
	ctx := context.Background()

	script := `
print("this should not appear")
config = {"project": "demo"}
`

	result, err := evaluator.Evaluate(ctx, "config.star", script)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := result.Globals["config"].(map[string]interface{})
	if cfg["project"] != "demo" {
		t.Errorf("expected project='demo', got %v", cfg["project"])
	}
}
