package naming

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mesadata/mesa/pkg/config"
)

// physicalSchemaPrefix namespaces managed physical schemas so they never
// collide with user schemas.
const physicalSchemaPrefix = "mesa__"

var environmentNameRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// ModelName is a parsed model name of the form [catalog.]schema.name.
type ModelName struct {
	// Catalog is the optional catalog segment. Empty means the gateway
	// connection's default catalog applies.
	Catalog string

	// Schema is the schema segment.
	Schema string

	// Name is the model's own name within the schema.
	Name string
}

// ParseModelName parses a dotted model name. Valid names have two segments
// (schema.name) or three (catalog.schema.name).
func ParseModelName(name string) (ModelName, error) {
	parts := strings.Split(name, ".")
	for _, part := range parts {
		if part == "" {
			return ModelName{}, fmt.Errorf("invalid model name %q: empty segment", name)
		}
	}
	switch len(parts) {
	case 2:
		return ModelName{Schema: parts[0], Name: parts[1]}, nil
	case 3:
		return ModelName{Catalog: parts[0], Schema: parts[1], Name: parts[2]}, nil
	default:
		return ModelName{}, fmt.Errorf("invalid model name %q: want schema.name or catalog.schema.name", name)
	}
}

// String renders the name dotted, omitting the catalog segment when empty.
func (n ModelName) String() string {
	if n.Catalog == "" {
		return n.Schema + "." + n.Name
	}
	return n.Catalog + "." + n.Schema + "." + n.Name
}

// ObjectName is a fully qualified reference to a table or view.
type ObjectName struct {
	// Catalog is the catalog holding the object. May be empty when the
	// connection has no default catalog.
	Catalog string

	// Schema is the schema holding the object.
	Schema string

	// Name is the table or view name.
	Name string
}

// String renders the name dotted, omitting the catalog segment when empty.
func (o ObjectName) String() string {
	if o.Catalog == "" {
		return o.Schema + "." + o.Name
	}
	return o.Catalog + "." + o.Schema + "." + o.Name
}

// NormalizeEnvironment lowercases an environment name and validates it.
// Valid names contain only lowercase letters, digits and underscores.
func NormalizeEnvironment(name string) (string, error) {
	normalized := strings.ToLower(name)
	if !environmentNameRe.MatchString(normalized) {
		return "", fmt.Errorf("invalid environment name %q: must match [a-z0-9_]+", name)
	}
	return normalized, nil
}

// Resolver computes physical table and virtual view names from the
// project's naming settings. The config must have passed Validate so that
// mapping patterns are compiled; configs produced by Loader.Load have.
type Resolver struct {
	cfg            *config.Config
	defaultCatalog string
}

// NewResolver returns a Resolver. defaultCatalog is used for model names
// without an explicit catalog segment and normally comes from the gateway
// connection's DefaultCatalog.
func NewResolver(cfg *config.Config, defaultCatalog string) *Resolver {
	return &Resolver{cfg: cfg, defaultCatalog: defaultCatalog}
}

// PhysicalSchema returns the physical schema backing a model schema. The
// first physical_schema_mapping entry whose pattern matches wins; without
// a match the model schema is prefixed with "mesa__".
func (r *Resolver) PhysicalSchema(schema string) string {
	for i := range r.cfg.PhysicalSchemaMapping {
		if r.cfg.PhysicalSchemaMapping[i].Matches(schema) {
			return r.cfg.PhysicalSchemaMapping[i].Schema
		}
	}
	return physicalSchemaPrefix + schema
}

// PhysicalTableName returns the table storing a model's data at the given
// version. The table name carries the model schema, model name and version
// so that every live version materializes side by side in the physical
// schema.
func (r *Resolver) PhysicalTableName(model ModelName, version string) (ObjectName, error) {
	if version == "" {
		return ObjectName{}, fmt.Errorf("physical table for %s: version is empty", model)
	}
	return ObjectName{
		Catalog: r.catalogFor(model),
		Schema:  r.PhysicalSchema(model.Schema),
		Name:    model.Schema + "__" + model.Name + "__" + version,
	}, nil
}

// VirtualViewName returns the view through which an environment exposes a
// model. The default target environment uses the model's plain name; every
// other environment has its name appended to the schema, table or catalog
// segment per environment_suffix_target. An empty environment selects the
// default target environment.
func (r *Resolver) VirtualViewName(model ModelName, environment string) (ObjectName, error) {
	if environment == "" {
		environment = r.cfg.DefaultTargetEnvironment
	}
	env, err := NormalizeEnvironment(environment)
	if err != nil {
		return ObjectName{}, err
	}

	catalog := r.catalogFor(model)
	if len(r.cfg.EnvironmentCatalogMapping) > 0 {
		catalog, err = r.mappedCatalog(env)
		if err != nil {
			return ObjectName{}, err
		}
	}

	if env == strings.ToLower(r.cfg.DefaultTargetEnvironment) {
		return ObjectName{Catalog: catalog, Schema: model.Schema, Name: model.Name}, nil
	}

	switch r.cfg.EnvironmentSuffixTarget {
	case config.SuffixTargetTable:
		return ObjectName{Catalog: catalog, Schema: model.Schema, Name: model.Name + "__" + env}, nil
	case config.SuffixTargetCatalog:
		if catalog == "" {
			return ObjectName{}, fmt.Errorf("environment_suffix_target %q needs a catalog for %s", config.SuffixTargetCatalog, model)
		}
		return ObjectName{Catalog: catalog + "__" + env, Schema: model.Schema, Name: model.Name}, nil
	default:
		// schema is the default suffix target
		return ObjectName{Catalog: catalog, Schema: model.Schema + "__" + env, Name: model.Name}, nil
	}
}

// mappedCatalog returns the catalog for an environment under a non-empty
// environment_catalog_mapping. Entries are tried in list order; no match
// is an error, not a fallback to the connection catalog.
func (r *Resolver) mappedCatalog(env string) (string, error) {
	for i := range r.cfg.EnvironmentCatalogMapping {
		if r.cfg.EnvironmentCatalogMapping[i].Matches(env) {
			return r.cfg.EnvironmentCatalogMapping[i].Catalog, nil
		}
	}
	return "", fmt.Errorf("no environment_catalog_mapping entry matches environment %q", env)
}

func (r *Resolver) catalogFor(model ModelName) string {
	if model.Catalog != "" {
		return model.Catalog
	}
	return r.defaultCatalog
}
