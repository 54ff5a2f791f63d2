package config

import (
	"fmt"
	"sort"
)

// builtinLintRules is the catalog of rules the linter knows about, keyed by
// rule name with a short description.
var builtinLintRules = map[string]string{
	"ambiguousorinvalidcolumn":   "a column reference cannot be resolved or is ambiguous",
	"invalidselectstarexpansion": "SELECT * cannot be expanded against the upstream schema",
	"noselectstar":               "the outermost SELECT uses *",
	"nomissingaudits":            "the model declares no audits",
	"nomissingowner":             "the model declares no owner",
}

// LintRuleNames returns the built-in rule names in lexical order.
func LintRuleNames() []string {
	names := make([]string, 0, len(builtinLintRules))
	for name := range builtinLintRules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LintRuleDescription returns the description of a built-in rule.
func LintRuleDescription(name string) (string, bool) {
	desc, ok := builtinLintRules[name]
	return desc, ok
}

// LinterConfig configures model linting.
type LinterConfig struct {
	// Enabled turns linting on.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Rules lists rules whose violations are errors.
	Rules []string `yaml:"rules,omitempty" json:"rules,omitempty"`

	// WarnRules lists rules whose violations are warnings.
	WarnRules []string `yaml:"warn_rules,omitempty" json:"warn_rules,omitempty"`

	// IgnoredRules lists rules that are not evaluated.
	IgnoredRules []string `yaml:"ignored_rules,omitempty" json:"ignored_rules,omitempty"`
}

// Validate checks that every referenced rule exists and that no rule
// appears in more than one list.
func (c *LinterConfig) Validate() error {
	seen := make(map[string]string)

	for _, group := range []struct {
		name  string
		rules []string
	}{
		{"rules", c.Rules},
		{"warn_rules", c.WarnRules},
		{"ignored_rules", c.IgnoredRules},
	} {
		for _, rule := range group.rules {
			if _, ok := builtinLintRules[rule]; !ok {
				return fmt.Errorf("unknown lint rule %q (known rules: %v)", rule, LintRuleNames())
			}
			if prev, ok := seen[rule]; ok {
				return fmt.Errorf("lint rule %q appears in both %s and %s", rule, prev, group.name)
			}
			seen[rule] = group.name
		}
	}
	return nil
}
