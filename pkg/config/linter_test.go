package config

import (
	"strings"
	"testing"
)

func TestLinterConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		linter  LinterConfig
		wantErr string
	}{
		{
			name: "valid",
			linter: LinterConfig{
				Enabled:      true,
				Rules:        []string{"noselectstar"},
				WarnRules:    []string{"nomissingowner"},
				IgnoredRules: []string{"nomissingaudits"},
			},
		},
		{
			name:   "empty",
			linter: LinterConfig{},
		},
		{
			name: "unknown rule",
			linter: LinterConfig{
				Rules: []string{"nosuchrule"},
			},
			wantErr: `unknown lint rule "nosuchrule"`,
		},
		{
			name: "rule in two lists",
			linter: LinterConfig{
				Rules:     []string{"noselectstar"},
				WarnRules: []string{"noselectstar"},
			},
			wantErr: `appears in both rules and warn_rules`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.linter.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLintRuleNames(t *testing.T) {
	names := LintRuleNames()
	if len(names) != 5 {
		t.Fatalf("expected 5 built-in rules, got %d: %v", len(names), names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Errorf("expected sorted names, got %v", names)
		}
	}

	if _, ok := LintRuleDescription("noselectstar"); !ok {
		t.Error("expected description for noselectstar")
	}
	if _, ok := LintRuleDescription("nosuchrule"); ok {
		t.Error("expected no description for unknown rule")
	}
}
