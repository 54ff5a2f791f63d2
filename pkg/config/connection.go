package config

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConnectionType identifies the engine behind a connection.
type ConnectionType string

// Supported connection types.
const (
	ConnectionTypeSQLite   ConnectionType = "sqlite"
	ConnectionTypePostgres ConnectionType = "postgres"
)

// ConnectionConfig is implemented by engine-specific connection configs.
type ConnectionConfig interface {
	// ConnectionType returns the engine type.
	ConnectionType() ConnectionType

	// DefaultCatalog returns the catalog used when a model name omits one.
	DefaultCatalog() string

	// Driver returns the database/sql driver name and DSN.
	Driver() (name string, dsn string, err error)

	// Connect opens the connection, verifies it and applies session setup.
	Connect(ctx context.Context) (*sql.DB, error)

	// Concurrency returns how many tasks may run concurrently.
	Concurrency() int

	// Redacted returns a copy safe for display, secrets masked.
	Redacted() ConnectionConfig

	// Validate checks the connection fields.
	Validate() error
}

// Connection wraps a ConnectionConfig for YAML/JSON decoding. The concrete
// type is selected by the "type" key.
type Connection struct {
	// Config is the engine-specific connection configuration.
	Config ConnectionConfig
}

// UnmarshalYAML decodes the connection based on its "type" key.
func (c *Connection) UnmarshalYAML(value *yaml.Node) error {
	var head struct {
		Type ConnectionType `yaml:"type"`
	}
	if err := value.Decode(&head); err != nil {
		return fmt.Errorf("failed to read connection type: %w", err)
	}

	switch head.Type {
	case ConnectionTypeSQLite:
		var cfg SQLiteConnectionConfig
		if err := value.Decode(&cfg); err != nil {
			return fmt.Errorf("failed to decode sqlite connection: %w", err)
		}
		c.Config = &cfg
	case ConnectionTypePostgres:
		var cfg PostgresConnectionConfig
		if err := value.Decode(&cfg); err != nil {
			return fmt.Errorf("failed to decode postgres connection: %w", err)
		}
		c.Config = &cfg
	case "":
		return fmt.Errorf("connection type is required")
	default:
		return fmt.Errorf("unknown connection type: %q", head.Type)
	}
	return nil
}

// MarshalYAML encodes the underlying connection config.
func (c Connection) MarshalYAML() (interface{}, error) {
	return c.Config, nil
}

// MarshalJSON encodes the underlying connection config.
func (c Connection) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Config)
}

// Redacted returns a display-safe copy of the connection.
func (c *Connection) Redacted() *Connection {
	if c == nil || c.Config == nil {
		return nil
	}
	return &Connection{Config: c.Config.Redacted()}
}

// NewInMemoryConnection returns the embedded in-memory SQLite connection
// used as the fallback when nothing is configured.
func NewInMemoryConnection() *Connection {
	return &Connection{Config: &SQLiteConnectionConfig{
		Type:            ConnectionTypeSQLite,
		Database:        ":memory:",
		ConcurrentTasks: 1,
	}}
}

// SQLiteConnectionConfig configures the embedded SQLite engine.
type SQLiteConnectionConfig struct {
	// Type is always "sqlite".
	Type ConnectionType `yaml:"type" json:"type"`

	// Database is the database file path, or ":memory:".
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Catalogs maps additional catalog names to database files that are
	// attached on connect.
	Catalogs map[string]string `yaml:"catalogs,omitempty" json:"catalogs,omitempty"`

	// ConcurrentTasks is how many tasks may run concurrently.
	ConcurrentTasks int `yaml:"concurrent_tasks,omitempty" json:"concurrent_tasks,omitempty" validate:"omitempty,gt=0"`
}

// ConnectionType returns the engine type.
func (c *SQLiteConnectionConfig) ConnectionType() ConnectionType {
	return ConnectionTypeSQLite
}

// DefaultCatalog returns the catalog used when a model name omits one.
func (c *SQLiteConnectionConfig) DefaultCatalog() string {
	return "main"
}

// Driver returns the modernc sqlite driver name and DSN.
func (c *SQLiteConnectionConfig) Driver() (string, string, error) {
	database := c.Database
	if database == "" {
		database = ":memory:"
	}
	return "sqlite", database, nil
}

// Connect opens the database, applies session pragmas and attaches catalogs.
func (c *SQLiteConnectionConfig) Connect(ctx context.Context) (*sql.DB, error) {
	name, dsn, err := c.Driver()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single writer connection keeps the in-memory database shared and
	// avoids SQLITE_BUSY on file databases.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	// Attach catalogs in stable order so errors are deterministic
	names := make([]string, 0, len(c.Catalogs))
	for catalog := range c.Catalogs {
		names = append(names, catalog)
	}
	sort.Strings(names)
	for _, catalog := range names {
		stmt := fmt.Sprintf("ATTACH DATABASE %s AS %s", quoteSQLiteString(c.Catalogs[catalog]), catalog)
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to attach catalog %s: %w", catalog, err)
		}
	}

	return db, nil
}

// Concurrency returns how many tasks may run concurrently.
func (c *SQLiteConnectionConfig) Concurrency() int {
	if c.ConcurrentTasks > 0 {
		return c.ConcurrentTasks
	}
	return 1
}

// Redacted returns a display-safe copy. SQLite carries no secrets.
func (c *SQLiteConnectionConfig) Redacted() ConnectionConfig {
	out := *c
	return &out
}

// Validate checks the connection fields.
func (c *SQLiteConnectionConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid sqlite connection: %w", err)
	}
	for catalog, path := range c.Catalogs {
		if !catalogNameRe.MatchString(catalog) {
			return fmt.Errorf("invalid sqlite catalog name %q", catalog)
		}
		if path == "" {
			return fmt.Errorf("sqlite catalog %q has no database path", catalog)
		}
	}
	return nil
}

// PostgresConnectionConfig configures a PostgreSQL connection.
type PostgresConnectionConfig struct {
	// Type is always "postgres".
	Type ConnectionType `yaml:"type" json:"type"`

	// Host is the server host.
	Host string `yaml:"host" json:"host" validate:"required"`

	// Port is the server port.
	Port int `yaml:"port,omitempty" json:"port,omitempty" validate:"omitempty,gt=0,lte=65535"`

	// User is the login user.
	User string `yaml:"user,omitempty" json:"user,omitempty"`

	// Password is the login password.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Database is the database to connect to.
	Database string `yaml:"database" json:"database" validate:"required"`

	// SSLMode is the libpq sslmode setting.
	SSLMode string `yaml:"sslmode,omitempty" json:"sslmode,omitempty" validate:"omitempty,oneof=disable require verify-ca verify-full"`

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`

	// ConcurrentTasks is how many tasks may run concurrently.
	ConcurrentTasks int `yaml:"concurrent_tasks,omitempty" json:"concurrent_tasks,omitempty" validate:"omitempty,gt=0"`
}

// ConnectionType returns the engine type.
func (c *PostgresConnectionConfig) ConnectionType() ConnectionType {
	return ConnectionTypePostgres
}

// DefaultCatalog returns the database name.
func (c *PostgresConnectionConfig) DefaultCatalog() string {
	return c.Database
}

// Driver returns the lib/pq driver name and key=value DSN.
func (c *PostgresConnectionConfig) Driver() (string, string, error) {
	if c.Host == "" {
		return "", "", fmt.Errorf("postgres connection requires a host")
	}
	if c.Database == "" {
		return "", "", fmt.Errorf("postgres connection requires a database")
	}

	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	timeout := c.ConnectTimeout
	if timeout == 0 {
		timeout = Duration(10 * time.Second)
	}

	parts := []string{
		"host=" + quoteDSNValue(c.Host),
		fmt.Sprintf("port=%d", port),
		"dbname=" + quoteDSNValue(c.Database),
		"sslmode=" + sslmode,
		fmt.Sprintf("connect_timeout=%d", int(timeout.Std().Seconds())),
	}
	if c.User != "" {
		parts = append(parts, "user="+quoteDSNValue(c.User))
	}
	if c.Password != "" {
		parts = append(parts, "password="+quoteDSNValue(c.Password))
	}

	return "postgres", strings.Join(parts, " "), nil
}

// Connect opens the database and verifies it.
func (c *PostgresConnectionConfig) Connect(ctx context.Context) (*sql.DB, error) {
	name, dsn, err := c.Driver()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	db.SetMaxOpenConns(c.Concurrency() * 2)
	db.SetMaxIdleConns(c.Concurrency())

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	return db, nil
}

// Concurrency returns how many tasks may run concurrently.
func (c *PostgresConnectionConfig) Concurrency() int {
	if c.ConcurrentTasks > 0 {
		return c.ConcurrentTasks
	}
	return 4
}

// Redacted returns a display-safe copy with the password masked.
func (c *PostgresConnectionConfig) Redacted() ConnectionConfig {
	out := *c
	if out.Password != "" {
		out.Password = redactedPlaceholder
	}
	return &out
}

// Validate checks the connection fields.
func (c *PostgresConnectionConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid postgres connection: %w", err)
	}
	return nil
}

// quoteSQLiteString renders a single-quoted SQLite string literal.
func quoteSQLiteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteDSNValue quotes a libpq DSN value when it contains spaces or quotes.
func quoteDSNValue(s string) string {
	if !strings.ContainsAny(s, ` '\`) {
		return s
	}
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}
