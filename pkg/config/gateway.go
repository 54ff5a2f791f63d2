package config

import (
	"fmt"
	"strings"
)

// DefaultStateSchema is the schema state tables live in when a gateway does
// not set state_schema.
const DefaultStateSchema = "mesa"

// ResolvedGateway is a gateway with every fallback applied: all connections
// and the scheduler are concrete and variables are merged with the project's.
type ResolvedGateway struct {
	// Name is the gateway name, empty for the implicit default gateway.
	Name string

	// Connection is the warehouse connection models run against.
	Connection ConnectionConfig

	// StateConnection is the connection state tables live on.
	StateConnection ConnectionConfig

	// TestConnection is the connection unit tests run against.
	TestConnection ConnectionConfig

	// Scheduler runs scheduled work.
	Scheduler SchedulerConfig

	// StateSchema is the schema state tables live in.
	StateSchema string

	// Variables are the project variables with gateway overrides applied.
	Variables map[string]interface{}
}

// StateIsolated reports whether state lives on a different connection than
// the warehouse. Sharing a connection is allowed but means janitor runs and
// model runs compete for the same database.
func (g *ResolvedGateway) StateIsolated() bool {
	a, aerr := connectionFingerprint(g.Connection)
	b, berr := connectionFingerprint(g.StateConnection)
	if aerr != nil || berr != nil {
		return false
	}
	return a != b
}

func connectionFingerprint(conn ConnectionConfig) (string, error) {
	name, dsn, err := conn.Driver()
	if err != nil {
		return "", err
	}
	return name + "\x00" + dsn, nil
}

// ResolveGateway resolves a gateway by name, applying the documented
// fallback chain for each connection and the scheduler. An empty name
// selects the default gateway. When no gateways are configured an implicit
// gateway backed by the project defaults is returned.
func (c *Config) ResolveGateway(name string) (*ResolvedGateway, error) {
	if name == "" {
		name = c.DefaultGateway
	}

	var gw *GatewayConfig
	if len(c.Gateways) == 0 {
		if name != "" {
			return nil, fmt.Errorf("gateway %q is not defined and no gateways are configured", name)
		}
		gw = &GatewayConfig{}
	} else {
		found, ok := c.Gateways[name]
		if !ok {
			return nil, fmt.Errorf("gateway %q is not defined (available: %s)", name, strings.Join(c.GatewayNames(), ", "))
		}
		gw = found
		if gw == nil {
			gw = &GatewayConfig{}
		}
	}

	resolved := &ResolvedGateway{
		Name:        name,
		StateSchema: gw.StateSchema,
	}
	if resolved.StateSchema == "" {
		resolved.StateSchema = DefaultStateSchema
	}

	// connection ?? default_connection ?? in-memory
	resolved.Connection = pickConnection(gw.Connection, c.DefaultConnection)

	// state_connection ?? the gateway's resolved connection
	if gw.StateConnection != nil && gw.StateConnection.Config != nil {
		resolved.StateConnection = gw.StateConnection.Config
	} else {
		resolved.StateConnection = resolved.Connection
	}

	// test_connection ?? default_test_connection ?? in-memory
	resolved.TestConnection = pickConnection(gw.TestConnection, c.DefaultTestConnection)

	// scheduler ?? default_scheduler ?? builtin
	switch {
	case gw.Scheduler != nil && gw.Scheduler.Config != nil:
		resolved.Scheduler = gw.Scheduler.Config
	case c.DefaultScheduler != nil && c.DefaultScheduler.Config != nil:
		resolved.Scheduler = c.DefaultScheduler.Config
	default:
		resolved.Scheduler = NewBuiltinScheduler().Config
	}

	resolved.Variables = MergeMaps(c.Variables, gw.Variables)

	return resolved, nil
}

func pickConnection(gateway, projectDefault *Connection) ConnectionConfig {
	if gateway != nil && gateway.Config != nil {
		return gateway.Config
	}
	if projectDefault != nil && projectDefault.Config != nil {
		return projectDefault.Config
	}
	return NewInMemoryConnection().Config
}
