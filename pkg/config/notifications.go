package config

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// UserRole grants a user project-level capabilities.
type UserRole string

// Supported user roles.
const (
	// UserRoleRequiredApprover marks a user whose approval gates plans that
	// apply automatically.
	UserRoleRequiredApprover UserRole = "required_approver"
)

// NotificationEvent identifies a lifecycle event notifications fire on.
type NotificationEvent string

// Supported notification events.
const (
	NotificationEventApplyStart   NotificationEvent = "apply_start"
	NotificationEventApplyEnd     NotificationEvent = "apply_end"
	NotificationEventApplyFailure NotificationEvent = "apply_failure"
	NotificationEventRunStart     NotificationEvent = "run_start"
	NotificationEventRunEnd       NotificationEvent = "run_end"
	NotificationEventRunFailure   NotificationEvent = "run_failure"
	NotificationEventAuditFailure NotificationEvent = "audit_failure"
)

// UserConfig describes a user known to the project.
type UserConfig struct {
	// Username identifies the user.
	Username string `yaml:"username" json:"username" validate:"required"`

	// Roles lists the roles granted to the user.
	Roles []UserRole `yaml:"roles,omitempty" json:"roles,omitempty" validate:"dive,oneof=required_approver"`

	// NotificationTargets lists targets notified for this user.
	NotificationTargets []NotificationTarget `yaml:"notification_targets,omitempty" json:"notification_targets,omitempty"`
}

// HasRole reports whether the user holds the given role.
func (u *UserConfig) HasRole(role UserRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NotificationTargetType identifies a notification transport.
type NotificationTargetType string

// Supported notification target types.
const (
	NotificationTargetSlackWebhook NotificationTargetType = "slack_webhook"
	NotificationTargetSlackAPI     NotificationTargetType = "slack_api"
	NotificationTargetSMTP         NotificationTargetType = "smtp"
)

// NotificationTargetConfig is implemented by transport-specific targets.
type NotificationTargetConfig interface {
	// TargetType returns the transport type.
	TargetType() NotificationTargetType

	// Events returns the lifecycle events this target fires on.
	Events() []NotificationEvent

	// Redacted returns a display-safe copy, secrets masked.
	Redacted() NotificationTargetConfig

	// Validate checks the target fields.
	Validate() error
}

// NotificationTarget wraps a NotificationTargetConfig for YAML/JSON
// decoding. The concrete type is selected by the "type" key.
type NotificationTarget struct {
	// Config is the transport-specific target configuration.
	Config NotificationTargetConfig
}

// UnmarshalYAML decodes the target based on its "type" key.
func (t *NotificationTarget) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Type NotificationTargetType `yaml:"type"`
	}
	if err := value.Decode(&head); err != nil {
		return fmt.Errorf("failed to read notification target type: %w", err)
	}

	switch head.Type {
	case NotificationTargetSlackWebhook:
		var cfg SlackWebhookNotificationTarget
		if err := value.Decode(&cfg); err != nil {
			return fmt.Errorf("failed to decode slack_webhook target: %w", err)
		}
		t.Config = &cfg
	case NotificationTargetSlackAPI:
		var cfg SlackAPINotificationTarget
		if err := value.Decode(&cfg); err != nil {
			return fmt.Errorf("failed to decode slack_api target: %w", err)
		}
		t.Config = &cfg
	case NotificationTargetSMTP:
		var cfg SMTPNotificationTarget
		if err := value.Decode(&cfg); err != nil {
			return fmt.Errorf("failed to decode smtp target: %w", err)
		}
		t.Config = &cfg
	case "":
		return fmt.Errorf("notification target type is required")
	default:
		return fmt.Errorf("unknown notification target type: %q", head.Type)
	}
	return nil
}

// MarshalYAML encodes the underlying target config.
func (t NotificationTarget) MarshalYAML() (interface{}, error) {
	return t.Config, nil
}

// MarshalJSON encodes the underlying target config.
func (t NotificationTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Config)
}

// Redacted returns a display-safe copy of the target.
func (t *NotificationTarget) Redacted() NotificationTarget {
	if t == nil || t.Config == nil {
		return NotificationTarget{}
	}
	return NotificationTarget{Config: t.Config.Redacted()}
}

// SlackWebhookNotificationTarget posts to a Slack incoming webhook.
type SlackWebhookNotificationTarget struct {
	// Type is always "slack_webhook".
	Type NotificationTargetType `yaml:"type" json:"type"`

	// URL is the webhook URL.
	URL string `yaml:"url" json:"url" validate:"required,url"`

	// NotifyOn lists the lifecycle events this target fires on.
	NotifyOn []NotificationEvent `yaml:"notify_on,omitempty" json:"notify_on,omitempty" validate:"dive,oneof=apply_start apply_end apply_failure run_start run_end run_failure audit_failure"`
}

// TargetType returns the transport type.
func (t *SlackWebhookNotificationTarget) TargetType() NotificationTargetType {
	return NotificationTargetSlackWebhook
}

// Events returns the lifecycle events this target fires on.
func (t *SlackWebhookNotificationTarget) Events() []NotificationEvent {
	return t.NotifyOn
}

// Redacted returns a display-safe copy with the webhook URL masked.
func (t *SlackWebhookNotificationTarget) Redacted() NotificationTargetConfig {
	out := *t
	out.URL = redactedPlaceholder
	return &out
}

// Validate checks the target fields.
func (t *SlackWebhookNotificationTarget) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid slack_webhook target: %w", err)
	}
	return nil
}

// SlackAPINotificationTarget posts through the Slack API to a channel.
type SlackAPINotificationTarget struct {
	// Type is always "slack_api".
	Type NotificationTargetType `yaml:"type" json:"type"`

	// Token is the Slack API token.
	Token string `yaml:"token" json:"token" validate:"required"`

	// Channel is the channel messages are posted to.
	Channel string `yaml:"channel" json:"channel" validate:"required"`

	// NotifyOn lists the lifecycle events this target fires on.
	NotifyOn []NotificationEvent `yaml:"notify_on,omitempty" json:"notify_on,omitempty" validate:"dive,oneof=apply_start apply_end apply_failure run_start run_end run_failure audit_failure"`
}

// TargetType returns the transport type.
func (t *SlackAPINotificationTarget) TargetType() NotificationTargetType {
	return NotificationTargetSlackAPI
}

// Events returns the lifecycle events this target fires on.
func (t *SlackAPINotificationTarget) Events() []NotificationEvent {
	return t.NotifyOn
}

// Redacted returns a display-safe copy with the token masked.
func (t *SlackAPINotificationTarget) Redacted() NotificationTargetConfig {
	out := *t
	out.Token = redactedPlaceholder
	return &out
}

// Validate checks the target fields.
func (t *SlackAPINotificationTarget) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid slack_api target: %w", err)
	}
	return nil
}

// SMTPNotificationTarget sends mail through an SMTP server.
type SMTPNotificationTarget struct {
	// Type is always "smtp".
	Type NotificationTargetType `yaml:"type" json:"type"`

	// Host is the SMTP server host.
	Host string `yaml:"host" json:"host" validate:"required"`

	// Port is the SMTP server port.
	Port int `yaml:"port,omitempty" json:"port,omitempty" validate:"omitempty,gt=0,lte=65535"`

	// User is the SMTP login user.
	User string `yaml:"user,omitempty" json:"user,omitempty"`

	// Password is the SMTP login password.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Sender is the From address.
	Sender string `yaml:"sender" json:"sender" validate:"required,email"`

	// Recipients are the To addresses.
	Recipients []string `yaml:"recipients" json:"recipients" validate:"required,min=1,dive,email"`

	// NotifyOn lists the lifecycle events this target fires on.
	NotifyOn []NotificationEvent `yaml:"notify_on,omitempty" json:"notify_on,omitempty" validate:"dive,oneof=apply_start apply_end apply_failure run_start run_end run_failure audit_failure"`
}

// TargetType returns the transport type.
func (t *SMTPNotificationTarget) TargetType() NotificationTargetType {
	return NotificationTargetSMTP
}

// Events returns the lifecycle events this target fires on.
func (t *SMTPNotificationTarget) Events() []NotificationEvent {
	return t.NotifyOn
}

// Redacted returns a display-safe copy with the password masked.
func (t *SMTPNotificationTarget) Redacted() NotificationTargetConfig {
	out := *t
	if out.Password != "" {
		out.Password = redactedPlaceholder
	}
	return &out
}

// Validate checks the target fields.
func (t *SMTPNotificationTarget) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid smtp target: %w", err)
	}
	return nil
}
