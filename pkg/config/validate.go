package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	projectNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	catalogNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	httpURLRe     = regexp.MustCompile(`^https?://`)
	dateRe        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// validate is the shared validator instance. Field names in error reports
// come from yaml tags so they match the config file surface.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("project_name", func(fl validator.FieldLevel) bool {
		return projectNameRe.MatchString(fl.Field().String())
	})

	_ = v.RegisterValidation("start_date", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if dateRe.MatchString(s) {
			_, err := time.Parse("2006-01-02", s)
			return err == nil
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	})

	return v
}

// Validate checks the decoded config: struct tags, per-connection and
// per-target rules, mapping regex compilation and cross-field constraints.
// All violations are returned together.
func (c *Config) Validate() ValidationErrors {
	var errs ValidationErrors

	addError := func(path, message string) {
		errs = append(errs, ValidationError{Path: path, Message: message, Severity: "error"})
	}

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				addError(trimNamespace(fe.Namespace()), describeFieldError(fe))
			}
		} else {
			addError("", err.Error())
		}
	}

	// Compile the ordered regex mappings
	for i := range c.PhysicalSchemaMapping {
		m := &c.PhysicalSchemaMapping[i]
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			addError(fmt.Sprintf("physical_schema_mapping[%d].pattern", i), fmt.Sprintf("invalid regex: %v", err))
			continue
		}
		m.re = re
	}
	for i := range c.EnvironmentCatalogMapping {
		m := &c.EnvironmentCatalogMapping[i]
		re, err := regexp.Compile(m.Pattern)
		if err != nil {
			addError(fmt.Sprintf("environment_catalog_mapping[%d].pattern", i), fmt.Sprintf("invalid regex: %v", err))
			continue
		}
		m.re = re
	}

	// The catalog mapping already decides the catalog per environment, so
	// suffixing the catalog as well would fight it
	if len(c.EnvironmentCatalogMapping) > 0 && c.EnvironmentSuffixTarget == SuffixTargetCatalog {
		addError("environment_suffix_target", "cannot be \"catalog\" when environment_catalog_mapping is set")
	}

	if c.DefaultGateway != "" && len(c.Gateways) > 0 {
		if _, ok := c.Gateways[c.DefaultGateway]; !ok {
			addError("default_gateway", fmt.Sprintf("gateway %q is not defined (available: %s)", c.DefaultGateway, strings.Join(c.GatewayNames(), ", ")))
		}
	}

	validateConnection := func(path string, conn *Connection) {
		if conn == nil || conn.Config == nil {
			return
		}
		if err := conn.Config.Validate(); err != nil {
			addError(path, err.Error())
		}
	}
	validateScheduler := func(path string, sched *Scheduler) {
		if sched == nil || sched.Config == nil {
			return
		}
		if err := sched.Config.Validate(); err != nil {
			addError(path, err.Error())
		}
	}

	validateConnection("default_connection", c.DefaultConnection)
	validateConnection("default_test_connection", c.DefaultTestConnection)
	validateScheduler("default_scheduler", c.DefaultScheduler)

	for _, name := range c.GatewayNames() {
		gw := c.Gateways[name]
		base := "gateways." + name
		if gw == nil {
			continue
		}
		validateConnection(base+".connection", gw.Connection)
		validateConnection(base+".state_connection", gw.StateConnection)
		validateConnection(base+".test_connection", gw.TestConnection)
		validateScheduler(base+".scheduler", gw.Scheduler)
	}

	for i := range c.NotificationTargets {
		target := c.NotificationTargets[i]
		if target.Config == nil {
			continue
		}
		if err := target.Config.Validate(); err != nil {
			addError(fmt.Sprintf("notification_targets[%d]", i), err.Error())
		}
	}
	for i := range c.Users {
		for j := range c.Users[i].NotificationTargets {
			target := c.Users[i].NotificationTargets[j]
			if target.Config == nil {
				continue
			}
			if err := target.Config.Validate(); err != nil {
				addError(fmt.Sprintf("users[%d].notification_targets[%d]", i, j), err.Error())
			}
		}
	}

	if err := c.Linter.Validate(); err != nil {
		addError("linter", err.Error())
	}

	return errs
}

// RequireProject returns an error when no project name is configured.
// Commands that touch state need one to scope their records.
func (c *Config) RequireProject() error {
	if c.Project == "" {
		return fmt.Errorf("no project name configured, set \"project\" in the config")
	}
	return nil
}

// trimNamespace strips the root struct name from a validator namespace,
// turning "Config.model_defaults.dialect" into "model_defaults.dialect".
func trimNamespace(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// describeFieldError renders a validator tag failure as a plain message.
func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "project_name":
		return "must be lowercase snake case starting with a letter"
	case "start_date":
		return "must be a YYYY-MM-DD date or an RFC 3339 datetime"
	case "url":
		return "must be a valid URL"
	case "email":
		return "must be a valid email address"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s item(s)", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
