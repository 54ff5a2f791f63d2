// Package naming maps model names to the physical tables that store their
// data and the virtual views that expose them per environment. It applies
// the project's physical_schema_mapping, environment_suffix_target and
// environment_catalog_mapping settings.
package naming
