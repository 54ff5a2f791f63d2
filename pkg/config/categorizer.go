package config

// ChangeCategory classifies a model change for planning purposes.
type ChangeCategory string

// Change categories.
const (
	// ChangeCategoryBreaking is a direct change that invalidates downstream
	// data and requires backfill.
	ChangeCategoryBreaking ChangeCategory = "breaking"

	// ChangeCategoryNonBreaking is a direct change that leaves downstream
	// data valid (e.g., an additive column).
	ChangeCategoryNonBreaking ChangeCategory = "non_breaking"

	// ChangeCategoryIndirectBreaking marks a downstream model affected by an
	// upstream breaking change.
	ChangeCategoryIndirectBreaking ChangeCategory = "indirect_breaking"

	// ChangeCategoryIndirectNonBreaking marks a downstream model affected by
	// an upstream non-breaking change.
	ChangeCategoryIndirectNonBreaking ChangeCategory = "indirect_non_breaking"

	// ChangeCategoryForwardOnly applies the change to new data only.
	ChangeCategoryForwardOnly ChangeCategory = "forward_only"

	// ChangeCategoryMetadata is a change with no data effect.
	ChangeCategoryMetadata ChangeCategory = "metadata"
)

// Indirect returns the category a downstream model inherits from this
// direct category.
func (c ChangeCategory) Indirect() ChangeCategory {
	switch c {
	case ChangeCategoryBreaking:
		return ChangeCategoryIndirectBreaking
	case ChangeCategoryNonBreaking, ChangeCategoryMetadata:
		return ChangeCategoryIndirectNonBreaking
	default:
		return c
	}
}

// IsBreaking reports whether the category invalidates downstream data.
func (c ChangeCategory) IsBreaking() bool {
	return c == ChangeCategoryBreaking || c == ChangeCategoryIndirectBreaking
}

// AutoCategorizationMode controls how much categorization is automated.
type AutoCategorizationMode string

// Auto-categorization modes.
const (
	// CategorizationFull always applies the suggested category, degrading
	// low-confidence suggestions to breaking.
	CategorizationFull AutoCategorizationMode = "full"

	// CategorizationSemi applies only high-confidence suggestions and
	// defers the rest to the user.
	CategorizationSemi AutoCategorizationMode = "semi"

	// CategorizationOff defers every change to the user.
	CategorizationOff AutoCategorizationMode = "off"
)

// ModelSourceType identifies where a model's definition comes from.
type ModelSourceType string

// Model source types.
const (
	ModelSourceSQL      ModelSourceType = "sql"
	ModelSourceSeed     ModelSourceType = "seed"
	ModelSourceExternal ModelSourceType = "external"
	ModelSourceStarlark ModelSourceType = "starlark"
)

// CategorizerConfig sets the auto-categorization mode per model source type.
type CategorizerConfig struct {
	// SQL is the mode for SQL models.
	SQL AutoCategorizationMode `yaml:"sql,omitempty" json:"sql,omitempty" validate:"omitempty,oneof=full semi off"`

	// Seed is the mode for seed models.
	Seed AutoCategorizationMode `yaml:"seed,omitempty" json:"seed,omitempty" validate:"omitempty,oneof=full semi off"`

	// External is the mode for external models.
	External AutoCategorizationMode `yaml:"external,omitempty" json:"external,omitempty" validate:"omitempty,oneof=full semi off"`

	// Starlark is the mode for starlark models.
	Starlark AutoCategorizationMode `yaml:"starlark,omitempty" json:"starlark,omitempty" validate:"omitempty,oneof=full semi off"`
}

// Mode returns the configured mode for a source type. Starlark models
// default to off because their rendered output is not statically diffable;
// everything else defaults to full.
func (c CategorizerConfig) Mode(source ModelSourceType) AutoCategorizationMode {
	var mode AutoCategorizationMode
	switch source {
	case ModelSourceSQL:
		mode = c.SQL
	case ModelSourceSeed:
		mode = c.Seed
	case ModelSourceExternal:
		mode = c.External
	case ModelSourceStarlark:
		mode = c.Starlark
		if mode == "" {
			return CategorizationOff
		}
	}
	if mode == "" {
		return CategorizationFull
	}
	return mode
}

// Categorizer decides change categories according to the plan configuration.
type Categorizer struct {
	plan PlanConfig
}

// NewCategorizer creates a categorizer from the plan configuration.
func NewCategorizer(plan PlanConfig) *Categorizer {
	return &Categorizer{plan: plan}
}

// Decide returns the category for a change and whether the decision was
// made automatically. When the second return is false the caller must ask
// the user. suggested is the category the diff analysis proposes and
// confident reports whether that analysis was unambiguous.
func (c *Categorizer) Decide(source ModelSourceType, suggested ChangeCategory, confident bool) (ChangeCategory, bool) {
	if c.plan.ForwardOnly {
		return ChangeCategoryForwardOnly, true
	}

	switch c.plan.AutoCategorizeChanges.Mode(source) {
	case CategorizationFull:
		if confident {
			return suggested, true
		}
		// Treat an uncertain change as breaking rather than risk stale
		// downstream data
		return ChangeCategoryBreaking, true

	case CategorizationSemi:
		if confident {
			return suggested, true
		}
		return "", false

	default:
		return "", false
	}
}
