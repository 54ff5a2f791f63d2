package state

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"

	"github.com/mesadata/mesa/pkg/config"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// DBStore implements Store over a sqlite or postgres state connection.
type DBStore struct {
	conn   config.ConnectionConfig
	driver string
	schema string
	db     *sql.DB
}

var _ Store = (*DBStore)(nil)

// NewStore creates a store over a gateway's resolved state connection.
// schema is the gateway's state_schema; it places the tables on postgres
// and is ignored for sqlite.
func NewStore(conn config.ConnectionConfig, schema string) (*DBStore, error) {
	if conn == nil {
		return nil, fmt.Errorf("state connection is required")
	}
	driverName, _, err := conn.Driver()
	if err != nil {
		return nil, fmt.Errorf("invalid state connection: %w", err)
	}
	switch driverName {
	case driverSQLite, driverPostgres:
	default:
		return nil, fmt.Errorf("unsupported state backend driver %q", driverName)
	}
	if driverName == driverPostgres && schema != "" && !schemaNameRe.MatchString(schema) {
		return nil, fmt.Errorf("invalid state schema name %q", schema)
	}
	return &DBStore{conn: conn, driver: driverName, schema: schema}, nil
}

// Init opens the database connection. On postgres the state schema is
// created if missing and becomes the connection search_path.
func (s *DBStore) Init(ctx context.Context) error {
	if s.driver == driverPostgres && s.schema != "" {
		if err := s.ensureSchema(ctx); err != nil {
			return err
		}
		_, dsn, err := s.conn.Driver()
		if err != nil {
			return err
		}
		db, err := sql.Open(driverPostgres, dsn+" search_path="+s.schema)
		if err != nil {
			return fmt.Errorf("failed to open state database: %w", err)
		}
		db.SetMaxOpenConns(s.conn.Concurrency() * 2)
		db.SetMaxIdleConns(s.conn.Concurrency())
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to ping state database: %w", err)
		}
		s.db = db
		return nil
	}

	db, err := s.conn.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	s.db = db
	return nil
}

// ensureSchema creates the state schema using a connection without a
// search_path override.
func (s *DBStore) ensureSchema(ctx context.Context) error {
	db, err := s.conn.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to open state database: %w", err)
	}
	defer func() { _ = db.Close() }()

	stmt := "CREATE SCHEMA IF NOT EXISTS " + pq.QuoteIdentifier(s.schema)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create state schema %s: %w", s.schema, err)
	}
	return nil
}

// Close closes the database connection.
func (s *DBStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping verifies the database connection.
func (s *DBStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store not initialized")
	}
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded migrations for the backend dialect. Already
// applied migrations are skipped.
func (s *DBStore) Migrate(_ context.Context) error {
	m, err := s.migrator()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version. applied is false
// when no migration has ever run. A schema left dirty by an interrupted
// migration is reported as an error.
func (s *DBStore) SchemaVersion(_ context.Context) (version uint, applied bool, err error) {
	m, err := s.migrator()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, true, fmt.Errorf("state schema is dirty at version %d, rerun migrate after fixing the failure", version)
	}
	return version, true, nil
}

func (s *DBStore) migrator() (*migrate.Migrate, error) {
	if s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+s.driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	var dbDriver database.Driver
	switch s.driver {
	case driverPostgres:
		dbDriver, err = postgres.WithInstance(s.db, &postgres.Config{})
	default:
		dbDriver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, s.driver, dbDriver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

// UpsertEnvironment inserts or updates an environment record. CreatedAt is
// set on first insert and UpdatedAt on every call.
func (s *DBStore) UpsertEnvironment(ctx context.Context, env *Environment) error {
	if env.Name == "" {
		return fmt.Errorf("environment name is required")
	}

	now := time.Now().UTC()
	if env.CreatedAt.IsZero() {
		env.CreatedAt = now
	}
	env.UpdatedAt = now

	query := s.rebind(`
		INSERT INTO environments (name, suffix_target, catalog, start_at, end_at, expires_at, pinned, plan_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			suffix_target = excluded.suffix_target,
			catalog = excluded.catalog,
			start_at = excluded.start_at,
			end_at = excluded.end_at,
			expires_at = excluded.expires_at,
			pinned = excluded.pinned,
			plan_id = excluded.plan_id,
			updated_at = excluded.updated_at
	`)

	_, err := s.db.ExecContext(ctx, query,
		env.Name,
		string(env.SuffixTarget),
		env.Catalog,
		env.StartAt.UTC(),
		env.EndAt.UTC(),
		nullableTime(env.ExpiresAt),
		env.Pinned,
		env.PlanID,
		env.CreatedAt,
		env.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert environment: %w", err)
	}
	return nil
}

// GetEnvironment retrieves an environment by name. Missing environments
// return ErrNotFound.
func (s *DBStore) GetEnvironment(ctx context.Context, name string) (*Environment, error) {
	query := s.rebind(`
		SELECT name, suffix_target, catalog, start_at, end_at, expires_at, pinned, plan_id, created_at, updated_at
		FROM environments
		WHERE name = ?
	`)

	env, err := scanEnvironment(s.db.QueryRowContext(ctx, query, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("environment %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get environment: %w", err)
	}
	return env, nil
}

// ListEnvironments returns all environments ordered by name.
func (s *DBStore) ListEnvironments(ctx context.Context) ([]*Environment, error) {
	query := `
		SELECT name, suffix_target, catalog, start_at, end_at, expires_at, pinned, plan_id, created_at, updated_at
		FROM environments
		ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list environments: %w", err)
	}
	defer rows.Close()

	envs := []*Environment{}
	for rows.Next() {
		env, err := scanEnvironment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		envs = append(envs, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate environments: %w", err)
	}
	return envs, nil
}

// InvalidateEnvironment marks an environment as expired now so the next
// janitor run deletes it.
func (s *DBStore) InvalidateEnvironment(ctx context.Context, name string) error {
	now := time.Now().UTC()
	query := s.rebind(`UPDATE environments SET expires_at = ?, updated_at = ? WHERE name = ?`)

	result, err := s.db.ExecContext(ctx, query, now, now, name)
	if err != nil {
		return fmt.Errorf("failed to invalidate environment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("environment %q: %w", name, ErrNotFound)
	}
	return nil
}

// DeleteExpired removes environments whose expiry has passed. Pinned
// environments and protected names are never deleted; callers pass the
// default target environment and any config-pinned names as protected. The
// deleted names are returned in order.
func (s *DBStore) DeleteExpired(ctx context.Context, protected []string, now time.Time) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	keep := make(map[string]bool, len(protected))
	for _, name := range protected {
		keep[name] = true
	}

	// Expiry is compared in Go, sqlite stores timestamps as text.
	selectQuery := `
		SELECT name, expires_at FROM environments
		WHERE expires_at IS NOT NULL AND NOT pinned
		ORDER BY name
	`
	rows, err := tx.QueryContext(ctx, selectQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to find expired environments: %w", err)
	}

	names := []string{}
	for rows.Next() {
		var name string
		var expires sql.NullTime
		if err := rows.Scan(&name, &expires); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan environment: %w", err)
		}
		if !keep[name] && expires.Valid && !expires.Time.After(now) {
			names = append(names, name)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate environments: %w", err)
	}
	_ = rows.Close()

	if len(names) == 0 {
		return nil, nil
	}

	deleteQuery := s.rebind(`DELETE FROM environments WHERE name = ?`)
	for _, name := range names {
		if _, err := tx.ExecContext(ctx, deleteQuery, name); err != nil {
			return nil, fmt.Errorf("failed to delete environment %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return names, nil
}

// GetMeta returns a state_meta value. Missing keys return ErrNotFound.
func (s *DBStore) GetMeta(ctx context.Context, key string) (string, error) {
	query := s.rebind(`SELECT value FROM state_meta WHERE key = ?`)

	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("state meta %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get state meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a state_meta key/value pair.
func (s *DBStore) SetMeta(ctx context.Context, key, value string) error {
	query := s.rebind(`
		INSERT INTO state_meta (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`)
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set state meta: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $1..$n for the postgres driver.
func (s *DBStore) rebind(query string) string {
	if s.driver != driverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteString("$")
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEnvironment(row rowScanner) (*Environment, error) {
	env := &Environment{}
	var suffixTarget string
	var expires sql.NullTime
	if err := row.Scan(
		&env.Name,
		&suffixTarget,
		&env.Catalog,
		&env.StartAt,
		&env.EndAt,
		&expires,
		&env.Pinned,
		&env.PlanID,
		&env.CreatedAt,
		&env.UpdatedAt,
	); err != nil {
		return nil, err
	}
	env.SuffixTarget = config.SuffixTarget(suffixTarget)
	if expires.Valid {
		t := expires.Time
		env.ExpiresAt = &t
	}
	return env, nil
}

func nullableTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
