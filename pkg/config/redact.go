package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// redactedPlaceholder replaces credential values in redacted output.
const redactedPlaceholder = "******"

// Redacted returns a copy of the config with every credential masked.
// Connections, schedulers and notification targets are replaced by their
// redacted counterparts; everything else is shared with the receiver.
func (c *Config) Redacted() *Config {
	out := *c

	out.DefaultConnection = c.DefaultConnection.Redacted()
	out.DefaultTestConnection = c.DefaultTestConnection.Redacted()
	out.DefaultScheduler = redactScheduler(c.DefaultScheduler)

	if c.Gateways != nil {
		out.Gateways = make(map[string]*GatewayConfig, len(c.Gateways))
		for name, gw := range c.Gateways {
			if gw == nil {
				out.Gateways[name] = nil
				continue
			}
			redacted := *gw
			redacted.Connection = gw.Connection.Redacted()
			redacted.StateConnection = gw.StateConnection.Redacted()
			redacted.TestConnection = gw.TestConnection.Redacted()
			redacted.Scheduler = redactScheduler(gw.Scheduler)
			out.Gateways[name] = &redacted
		}
	}

	if c.NotificationTargets != nil {
		out.NotificationTargets = make([]NotificationTarget, len(c.NotificationTargets))
		for i := range c.NotificationTargets {
			out.NotificationTargets[i] = c.NotificationTargets[i].Redacted()
		}
	}

	if c.Users != nil {
		out.Users = make([]UserConfig, len(c.Users))
		for i, user := range c.Users {
			redacted := user
			if user.NotificationTargets != nil {
				redacted.NotificationTargets = make([]NotificationTarget, len(user.NotificationTargets))
				for j := range user.NotificationTargets {
					redacted.NotificationTargets[j] = user.NotificationTargets[j].Redacted()
				}
			}
			out.Users[i] = redacted
		}
	}

	return &out
}

func redactScheduler(sched *Scheduler) *Scheduler {
	if sched == nil || sched.Config == nil {
		return sched
	}
	return &Scheduler{Config: sched.Config.Redacted()}
}

// Tree renders the config as a raw tree by a YAML round trip. Defaults that
// applyDefaults materialized are included.
func (c *Config) Tree() (map[string]interface{}, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode config tree: %w", err)
	}
	if tree == nil {
		tree = map[string]interface{}{}
	}
	return tree, nil
}
