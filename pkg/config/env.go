package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables recognized by mesa.
const (
	// EnvPrefix prefixes config override variables. The double underscore
	// separates path segments: MESA__GATEWAYS__PROD__STATE_SCHEMA.
	EnvPrefix = "MESA__"

	// EnvDebug enables debug mode (1/true/yes/on).
	EnvDebug = "MESA_DEBUG"

	// EnvHome relocates the user config and state directory.
	EnvHome = "MESA_HOME"

	// EnvNoAnalytics disables usage analytics (1/true/yes/on).
	EnvNoAnalytics = "MESA_NO_ANALYTICS"
)

// envSeparator splits override variable names into path segments.
const envSeparator = "__"

// EnvOverrides parses config overrides from the given environment in
// os.Environ() form and returns them as a config tree, plus warnings for
// variables that carry the prefix but no usable key path. Values are parsed
// as YAML, so booleans, numbers, lists and maps come through typed.
func EnvOverrides(environ []string) (map[string]interface{}, []string) {
	tree := make(map[string]interface{})
	var warnings []string

	// Sort for deterministic application order
	entries := make([]string, len(environ))
	copy(entries, environ)
	sort.Strings(entries)

	for _, entry := range entries {
		name, value, found := strings.Cut(entry, "=")
		if !found || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}

		path, ok := splitEnvPath(name)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("ignoring malformed override variable %s", name))
			continue
		}

		SetPath(tree, path, parseEnvValue(value))
	}
	return tree, warnings
}

// splitEnvPath turns MESA__A__B_C into ["a", "b_c"]. Segments are
// lowercased; single underscores inside a segment are preserved.
func splitEnvPath(name string) ([]string, bool) {
	rest := strings.TrimPrefix(name, EnvPrefix)
	if rest == "" {
		return nil, false
	}

	segments := strings.Split(rest, envSeparator)
	path := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			return nil, false
		}
		path = append(path, strings.ToLower(segment))
	}
	return path, true
}

// parseEnvValue parses an override value as YAML, falling back to the raw
// string when it is not valid YAML.
func parseEnvValue(value string) interface{} {
	if value == "" {
		return ""
	}

	var parsed interface{}
	if err := yaml.Unmarshal([]byte(value), &parsed); err != nil {
		return value
	}
	if parsed == nil {
		return ""
	}
	return parsed
}

// isTruthyEnv reports whether an environment value means enabled.
func isTruthyEnv(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// DebugEnabled reports whether MESA_DEBUG requests debug mode.
func DebugEnabled() bool {
	return isTruthyEnv(os.Getenv(EnvDebug))
}

// AnalyticsDisabled reports whether MESA_NO_ANALYTICS disables usage
// analytics.
func AnalyticsDisabled() bool {
	return isTruthyEnv(os.Getenv(EnvNoAnalytics))
}

// HomeDir returns the mesa home directory: $MESA_HOME when set, otherwise
// ~/.mesa.
func HomeDir() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(userHome, ".mesa"), nil
}
