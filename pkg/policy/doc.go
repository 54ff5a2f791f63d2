// Package policy evaluates guardrail policies against a merged
// configuration tree using Open Policy Agent (OPA) and Rego.
//
// Policies inspect the configuration as the user wrote it, before default
// and fallback chains are applied, so they can flag omissions that the
// resolution layer would otherwise paper over.
//
// # Policy Model
//
// A Policy pairs Rego source with a name, a severity, and an enabled flag.
// Each policy's Rego module declares its own package and a deny rule; the
// engine queries data.<package>.deny and turns every member of the result
// set into a Violation. Deny members may be plain strings or objects with
// message, severity, and path keys. An object severity overrides the
// policy's declared severity for that violation.
//
// Severities split evaluation results in two: error and critical block the
// operation, warning and info are reported but do not block.
//
// # Builtin Policies
//
// The engine ships with guardrails that encode common configuration
// mistakes:
//
//   - gateway-naming: gateway names must match [a-z0-9_]+ (error)
//   - state-backend-isolation: a gateway's state connection should not be
//     its data connection (warning)
//   - ephemeral-test-connection: test connections should not reuse the
//     data connection (warning)
//   - catalog-mapping-fallback: environment_catalog_mapping should end in
//     a catch-all pattern (warning)
//   - auto-apply-approvers: auto-applied plans should have a required
//     approver (warning)
//
// Builtins can be disabled individually; user policies loaded from disk
// are layered on top of them.
//
// # Loading and Watching
//
// The Loader reads .rego and .json policy files from files or directories
// (recursively) with a per-path cache. Watch observes those paths with
// fsnotify and, after a debounce interval, reloads the full set and hands
// it to a reload callback, which pairs with Engine.SetPolicies for live
// policy updates.
package policy
