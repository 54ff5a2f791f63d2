package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// SchedulerType identifies a scheduler implementation.
type SchedulerType string

// Supported scheduler types.
const (
	SchedulerTypeBuiltin SchedulerType = "builtin"
	SchedulerTypeRemote  SchedulerType = "remote"
)

// SchedulerConfig is implemented by scheduler-specific configs.
type SchedulerConfig interface {
	// SchedulerType returns the scheduler implementation type.
	SchedulerType() SchedulerType

	// Redacted returns a copy safe to print, with credentials masked.
	Redacted() SchedulerConfig

	// Validate checks the scheduler fields.
	Validate() error
}

// Scheduler wraps a SchedulerConfig for YAML/JSON decoding. The concrete
// type is selected by the "type" key.
type Scheduler struct {
	// Config is the scheduler-specific configuration.
	Config SchedulerConfig
}

// UnmarshalYAML decodes the scheduler based on its "type" key.
func (s *Scheduler) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Type SchedulerType `yaml:"type"`
	}
	if err := value.Decode(&head); err != nil {
		return fmt.Errorf("failed to read scheduler type: %w", err)
	}

	switch head.Type {
	case SchedulerTypeBuiltin, "":
		var cfg BuiltinSchedulerConfig
		if err := value.Decode(&cfg); err != nil {
			return fmt.Errorf("failed to decode builtin scheduler: %w", err)
		}
		cfg.Type = SchedulerTypeBuiltin
		s.Config = &cfg
	case SchedulerTypeRemote:
		var cfg RemoteSchedulerConfig
		if err := value.Decode(&cfg); err != nil {
			return fmt.Errorf("failed to decode remote scheduler: %w", err)
		}
		s.Config = &cfg
	default:
		return fmt.Errorf("unknown scheduler type: %q", head.Type)
	}
	return nil
}

// MarshalYAML encodes the underlying scheduler config.
func (s Scheduler) MarshalYAML() (interface{}, error) {
	return s.Config, nil
}

// MarshalJSON encodes the underlying scheduler config.
func (s Scheduler) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Config)
}

// NewBuiltinScheduler returns the default builtin scheduler.
func NewBuiltinScheduler() *Scheduler {
	return &Scheduler{Config: &BuiltinSchedulerConfig{Type: SchedulerTypeBuiltin}}
}

// BuiltinSchedulerConfig runs scheduling inside the orchestrator against
// the state connection.
type BuiltinSchedulerConfig struct {
	// Type is always "builtin".
	Type SchedulerType `yaml:"type" json:"type"`
}

// SchedulerType returns the scheduler implementation type.
func (c *BuiltinSchedulerConfig) SchedulerType() SchedulerType {
	return SchedulerTypeBuiltin
}

// Redacted returns the config unchanged, it holds no credentials.
func (c *BuiltinSchedulerConfig) Redacted() SchedulerConfig {
	out := *c
	return &out
}

// Validate checks the scheduler fields.
func (c *BuiltinSchedulerConfig) Validate() error {
	return nil
}

// RemoteSchedulerConfig delegates scheduling to a remote service.
type RemoteSchedulerConfig struct {
	// Type is always "remote".
	Type SchedulerType `yaml:"type" json:"type"`

	// URL is the scheduler service endpoint.
	URL string `yaml:"url" json:"url" validate:"required,url"`

	// Token authenticates requests to the service.
	Token string `yaml:"token,omitempty" json:"token,omitempty"`

	// Timeout bounds scheduler requests.
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// SchedulerType returns the scheduler implementation type.
func (c *RemoteSchedulerConfig) SchedulerType() SchedulerType {
	return SchedulerTypeRemote
}

// Redacted returns a copy with the token masked.
func (c *RemoteSchedulerConfig) Redacted() SchedulerConfig {
	out := *c
	if out.Token != "" {
		out.Token = redactedPlaceholder
	}
	return &out
}

// RequestTimeout returns the configured timeout, defaulting to 30s.
func (c *RemoteSchedulerConfig) RequestTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout.Std()
	}
	return 30 * time.Second
}

// Validate checks the scheduler fields.
func (c *RemoteSchedulerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid remote scheduler: %w", err)
	}
	if !httpURLRe.MatchString(c.URL) {
		return fmt.Errorf("remote scheduler url must be http or https: %q", c.URL)
	}
	return nil
}
