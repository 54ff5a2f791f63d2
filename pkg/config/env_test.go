package config

import (
	"reflect"
	"testing"
)

func TestEnvOverrides(t *testing.T) {
	tests := []struct {
		name         string
		environ      []string
		want         map[string]interface{}
		wantWarnings int
	}{
		{
			name:    "simple scalar",
			environ: []string{"MESA__DEFAULT_GATEWAY=prod"},
			want: map[string]interface{}{
				"default_gateway": "prod",
			},
		},
		{
			name:    "nested path",
			environ: []string{"MESA__GATEWAYS__PROD__STATE_SCHEMA=custom"},
			want: map[string]interface{}{
				"gateways": map[string]interface{}{
					"prod": map[string]interface{}{
						"state_schema": "custom",
					},
				},
			},
		},
		{
			name: "values are yaml typed",
			environ: []string{
				"MESA__PLAN__AUTO_APPLY=true",
				"MESA__GATEWAYS__PROD__CONNECTION__PORT=5439",
				"MESA__TELEMETRY__TRACING__SAMPLING_RATE=0.25",
			},
			want: map[string]interface{}{
				"plan": map[string]interface{}{
					"auto_apply": true,
				},
				"gateways": map[string]interface{}{
					"prod": map[string]interface{}{
						"connection": map[string]interface{}{
							"port": 5439,
						},
					},
				},
				"telemetry": map[string]interface{}{
					"tracing": map[string]interface{}{
						"sampling_rate": 0.25,
					},
				},
			},
		},
		{
			name:    "yaml list value",
			environ: []string{"MESA__PINNED_ENVIRONMENTS=[prod, staging]"},
			want: map[string]interface{}{
				"pinned_environments": []interface{}{"prod", "staging"},
			},
		},
		{
			name:    "empty value stays a string",
			environ: []string{"MESA__DEFAULT_GATEWAY="},
			want: map[string]interface{}{
				"default_gateway": "",
			},
		},
		{
			name: "non-mesa variables ignored",
			environ: []string{
				"PATH=/usr/bin",
				"MESA_DEBUG=1",
				"MESA_HOME=/opt/mesa",
				"MESAX__PROJECT=nope",
			},
			want: map[string]interface{}{},
		},
		{
			name:         "empty segment warns",
			environ:      []string{"MESA____PROJECT=bad"},
			want:         map[string]interface{}{},
			wantWarnings: 1,
		},
		{
			name:         "bare prefix warns",
			environ:      []string{"MESA__=bad"},
			want:         map[string]interface{}{},
			wantWarnings: 1,
		},
		{
			name: "deterministic order on conflicts",
			environ: []string{
				"MESA__GATEWAYS__PROD__CONNECTION=flat",
				"MESA__GATEWAYS__PROD__CONNECTION__HOST=db.internal",
			},
			// Sorted application means the deeper path is applied last
			want: map[string]interface{}{
				"gateways": map[string]interface{}{
					"prod": map[string]interface{}{
						"connection": map[string]interface{}{
							"host": "db.internal",
						},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, warnings := EnvOverrides(tt.environ)
			if !reflect.DeepEqual(tree, tt.want) {
				t.Errorf("tree mismatch:\n got: %#v\nwant: %#v", tree, tt.want)
			}
			if len(warnings) != tt.wantWarnings {
				t.Errorf("expected %d warnings, got %v", tt.wantWarnings, warnings)
			}
		})
	}
}

func TestDebugEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"on", true},
		{"0", false},
		{"false", false},
		{"", false},
		{"maybe", false},
	}

	for _, tt := range tests {
		t.Run("value "+tt.value, func(t *testing.T) {
			t.Setenv(EnvDebug, tt.value)
			if got := DebugEnabled(); got != tt.want {
				t.Errorf("DebugEnabled() with %q = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestAnalyticsDisabled(t *testing.T) {
	t.Setenv(EnvNoAnalytics, "1")
	if !AnalyticsDisabled() {
		t.Error("expected analytics disabled")
	}

	t.Setenv(EnvNoAnalytics, "")
	if AnalyticsDisabled() {
		t.Error("expected analytics enabled")
	}
}

func TestHomeDir(t *testing.T) {
	t.Setenv(EnvHome, "/opt/mesa-home")
	dir, err := HomeDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "/opt/mesa-home" {
		t.Errorf("expected MESA_HOME to win, got %q", dir)
	}

	t.Setenv(EnvHome, "")
	t.Setenv("HOME", "/home/tester")
	dir, err = HomeDir()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != "/home/tester/.mesa" {
		t.Errorf("expected ~/.mesa, got %q", dir)
	}
}
