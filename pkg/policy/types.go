package policy

import (
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for issues that should be reviewed but do not
	// block validation.
	SeverityWarning Severity = "warning"

	// SeverityError is for violations that fail validation.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that fail validation and require
	// immediate attention.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether violations of this severity fail validation.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a guardrail rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Violations come from the deny
	// rule of the policy's package.
	Rego string `json:"rego"`

	// Severity is the default severity for violations that do not carry
	// their own.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is evaluated.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	// CreatedAt is when the policy was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the policy was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Violation is a single policy violation.
type Violation struct {
	// Policy is the name of the violated policy.
	Policy string `json:"policy"`

	// Path is the config path the violation refers to.
	Path string `json:"path,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Details contains additional violation details.
	Details map[string]interface{} `json:"details,omitempty"`

	// DetectedAt is when the violation was detected.
	DetectedAt time.Time `json:"detected_at"`
}

// Result is the outcome of evaluating all policies against a config tree.
type Result struct {
	// Allowed is false when any violation has a blocking severity.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations (error or critical).
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists non-blocking violations (info or warning), including
	// policies that failed to evaluate.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of the evaluated policies.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation ran.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document policies evaluate against.
type Input struct {
	// Config is the merged config tree as the user wrote it, before
	// defaults and fallback chains are applied.
	Config map[string]interface{} `json:"config"`

	// Context provides evaluation context.
	Context *EvalContext `json:"context"`
}

// EvalContext provides context information for policy evaluation.
type EvalContext struct {
	// Operation is the operation being performed (e.g. "validate").
	Operation string `json:"operation,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`

	// User is the user performing the operation.
	User string `json:"user,omitempty"`

	// Metadata contains additional context metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// NewInput builds an Input for a config tree with a populated context.
func NewInput(tree map[string]interface{}, operation string) *Input {
	return &Input{
		Config: tree,
		Context: &EvalContext{
			Operation: operation,
			Timestamp: time.Now(),
		},
	}
}
