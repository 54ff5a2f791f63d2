package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that parses compact unit strings such as
// "30s", "12h", "1d" or "1w", including sequences like "1d12h". Units are
// s, m, h, d (24h) and w (7d).
type Duration time.Duration

// Duration unit sizes.
const (
	day  = 24 * time.Hour
	week = 7 * day
)

// ParseDuration parses a compact duration string.
func ParseDuration(s string) (Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}

	var total time.Duration
	num := ""
	for _, r := range s {
		if r >= '0' && r <= '9' {
			num += string(r)
			continue
		}

		if num == "" {
			return 0, fmt.Errorf("invalid duration %q: unit %q has no value", s, string(r))
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		num = ""

		switch r {
		case 's':
			total += time.Duration(n) * time.Second
		case 'm':
			total += time.Duration(n) * time.Minute
		case 'h':
			total += time.Duration(n) * time.Hour
		case 'd':
			total += time.Duration(n) * day
		case 'w':
			total += time.Duration(n) * week
		default:
			return 0, fmt.Errorf("invalid duration %q: unknown unit %q", s, string(r))
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q: trailing value without unit", s)
	}

	return Duration(total), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// String renders the duration in compact unit form.
func (d Duration) String() string {
	rest := time.Duration(d)
	if rest == 0 {
		return "0s"
	}

	var b strings.Builder
	for _, unit := range []struct {
		size time.Duration
		name string
	}{
		{week, "w"},
		{day, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	} {
		if n := rest / unit.size; n > 0 {
			fmt.Fprintf(&b, "%d%s", n, unit.name)
			rest -= n * unit.size
		}
	}
	return b.String()
}

// UnmarshalYAML decodes a duration from a YAML scalar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML encodes the duration in compact unit form.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalJSON decodes a duration from a JSON string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	parsed, err := ParseDuration(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalJSON encodes the duration in compact unit form.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
