package policy

import (
	"time"
)

// BuiltinPolicies returns the builtin config guardrails.
func BuiltinPolicies() []Policy {
	return []Policy{
		gatewayNamingPolicy(),
		stateBackendIsolationPolicy(),
		ephemeralTestConnectionPolicy(),
		catalogMappingFallbackPolicy(),
		autoApplyApproversPolicy(),
	}
}

// gatewayNamingPolicy enforces the gateway naming convention.
func gatewayNamingPolicy() Policy {
	return Policy{
		Name:        "gateway-naming",
		Description: "Gateway names must contain only lowercase letters, digits and underscores",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"naming", "gateways"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package mesa.policies.gateways

import rego.v1

deny contains violation if {
	some name, _ in input.config.gateways
	not regex.match("^[a-z0-9_]+$", name)
	violation := {
		"message": sprintf("gateway name '%s' must match [a-z0-9_]+", [name]),
		"severity": "error",
		"path": sprintf("gateways.%s", [name]),
	}
}`,
	}
}

// stateBackendIsolationPolicy flags gateways whose state connection is the
// warehouse connection.
func stateBackendIsolationPolicy() Policy {
	return Policy{
		Name:        "state-backend-isolation",
		Description: "State should live in a backend separate from the warehouse connection",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"state", "gateways"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package mesa.policies.state

import rego.v1

deny contains violation if {
	some name, gw in input.config.gateways
	gw.state_connection == gw.connection
	violation := {
		"message": sprintf("gateway '%s' uses its warehouse connection as the state backend", [name]),
		"severity": "warning",
		"path": sprintf("gateways.%s.state_connection", [name]),
	}
}`,
	}
}

// ephemeralTestConnectionPolicy flags test connections that reuse the
// warehouse connection.
func ephemeralTestConnectionPolicy() Policy {
	return Policy{
		Name:        "ephemeral-test-connection",
		Description: "Test connections should not reuse the warehouse connection",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"testing", "gateways"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package mesa.policies.testing

import rego.v1

deny contains violation if {
	some name, gw in input.config.gateways
	gw.test_connection == gw.connection
	violation := {
		"message": sprintf("gateway '%s' runs unit tests against its warehouse connection", [name]),
		"severity": "warning",
		"path": sprintf("gateways.%s.test_connection", [name]),
	}
}

deny contains violation if {
	input.config.default_test_connection == input.config.default_connection
	violation := {
		"message": "default_test_connection is identical to default_connection",
		"severity": "warning",
		"path": "default_test_connection",
	}
}`,
	}
}

// catalogMappingFallbackPolicy flags catalog mappings without a catch-all
// entry. Unmatched environment names fail to resolve at naming time.
func catalogMappingFallbackPolicy() Policy {
	return Policy{
		Name:        "catalog-mapping-fallback",
		Description: "environment_catalog_mapping should end with a catch-all .* entry",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"naming", "catalogs"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package mesa.policies.catalogs

import rego.v1

deny contains violation if {
	mapping := input.config.environment_catalog_mapping
	count(mapping) > 0
	not has_catch_all(mapping)
	violation := {
		"message": "environment_catalog_mapping has no catch-all '.*' entry, unmatched environment names will fail to resolve",
		"severity": "warning",
		"path": "environment_catalog_mapping",
	}
}

has_catch_all(mapping) if {
	some entry in mapping
	entry.pattern == ".*"
}`,
	}
}

// autoApplyApproversPolicy flags auto-applied plans with nobody holding the
// required_approver role.
func autoApplyApproversPolicy() Policy {
	return Policy{
		Name:        "auto-apply-approvers",
		Description: "Plans that auto-apply should be gated by a required approver",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"plans", "users"},
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Rego: `package mesa.policies.plans

import rego.v1

deny contains violation if {
	input.config.plan.auto_apply == true
	not has_required_approver
	violation := {
		"message": "plan.auto_apply is enabled but no user holds the required_approver role",
		"severity": "warning",
		"path": "plan.auto_apply",
	}
}

has_required_approver if {
	some user in input.config.users
	some role in user.roles
	role == "required_approver"
}`,
	}
}
