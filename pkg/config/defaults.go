package config

// applyDefaults fills documented defaults into unset fields. It runs after
// decoding and before validation so defaulted values are validated too.
// Connection and scheduler fallbacks are not materialized here; the chain
// is resolved per gateway by ResolveGateway.
func applyDefaults(c *Config) {
	if c.SnapshotTTL == 0 {
		c.SnapshotTTL = Duration(week)
	}
	if c.EnvironmentTTL == 0 {
		c.EnvironmentTTL = Duration(week)
	}
	if c.TimeColumnFormat == "" {
		c.TimeColumnFormat = "%Y-%m-%d"
	}
	if c.DefaultTargetEnvironment == "" {
		c.DefaultTargetEnvironment = "prod"
	}
	if c.EnvironmentSuffixTarget == "" {
		c.EnvironmentSuffixTarget = SuffixTargetSchema
	}

	if c.DefaultGateway == "" && len(c.Gateways) > 0 {
		c.DefaultGateway = c.GatewayNames()[0]
	}
	for _, gw := range c.Gateways {
		if gw != nil && gw.StateSchema == "" {
			gw.StateSchema = DefaultStateSchema
		}
	}

	md := &c.ModelDefaults
	if md.Kind == "" {
		md.Kind = ModelKindFull
	}
	if md.Cron == "" {
		md.Cron = "@daily"
	}
	if md.OnDestructiveChange == "" {
		md.OnDestructiveChange = DestructiveChangeError
	}

	cat := &c.Plan.AutoCategorizeChanges
	if cat.SQL == "" {
		cat.SQL = CategorizationFull
	}
	if cat.Seed == "" {
		cat.Seed = CategorizationFull
	}
	if cat.External == "" {
		cat.External = CategorizationFull
	}
	if cat.Starlark == "" {
		cat.Starlark = CategorizationOff
	}
}
