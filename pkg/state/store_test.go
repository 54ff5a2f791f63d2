package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mesadata/mesa/pkg/config"
)

// setupTestStore creates a migrated in-memory sqlite store.
func setupTestStore(t *testing.T) *DBStore {
	t.Helper()

	store, err := NewStore(&config.SQLiteConnectionConfig{}, "")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestNewStore(t *testing.T) {
	if _, err := NewStore(nil, ""); err == nil {
		t.Error("NewStore(nil) succeeded, want error")
	}

	if _, err := NewStore(&config.PostgresConnectionConfig{}, "mesa"); err == nil {
		t.Error("NewStore with hostless postgres connection succeeded, want error")
	}

	pg := &config.PostgresConnectionConfig{Host: "localhost", Database: "mesa"}
	if _, err := NewStore(pg, "bad-schema"); err == nil {
		t.Error("NewStore with invalid schema name succeeded, want error")
	}
	if _, err := NewStore(pg, "mesa_state"); err != nil {
		t.Errorf("NewStore with valid schema name failed: %v", err)
	}
}

func TestStoreLifecycle(t *testing.T) {
	store, err := NewStore(&config.SQLiteConnectionConfig{}, "")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}
}

func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, table := range []string{"environments", "state_meta"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}

	version, applied, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 1 || !applied {
		t.Errorf("SchemaVersion = (%d, %t), want (1, true)", version, applied)
	}

	// Migrate is idempotent.
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second Migrate failed: %v", err)
	}
}

func TestSchemaVersionBeforeMigrate(t *testing.T) {
	store, err := NewStore(&config.SQLiteConnectionConfig{}, "")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	version, applied, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != 0 || applied {
		t.Errorf("SchemaVersion = (%d, %t), want (0, false)", version, applied)
	}
}

func TestEnvironmentCRUD(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	expires := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	env := &Environment{
		Name:         "dev_alice",
		SuffixTarget: config.SuffixTargetSchema,
		Catalog:      "dev_warehouse",
		StartAt:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EndAt:        time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC),
		ExpiresAt:    &expires,
		PlanID:       "plan-1",
	}
	if err := store.UpsertEnvironment(ctx, env); err != nil {
		t.Fatalf("failed to upsert environment: %v", err)
	}
	if env.CreatedAt.IsZero() || env.UpdatedAt.IsZero() {
		t.Error("upsert did not set CreatedAt/UpdatedAt")
	}
	firstCreated := env.CreatedAt

	got, err := store.GetEnvironment(ctx, "dev_alice")
	if err != nil {
		t.Fatalf("failed to get environment: %v", err)
	}
	if got.Name != env.Name || got.SuffixTarget != env.SuffixTarget || got.Catalog != env.Catalog {
		t.Errorf("got %+v, want %+v", got, env)
	}
	if !got.StartAt.Equal(env.StartAt) || !got.EndAt.Equal(env.EndAt) {
		t.Errorf("interval = (%v, %v), want (%v, %v)", got.StartAt, got.EndAt, env.StartAt, env.EndAt)
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
	if got.Pinned {
		t.Error("Pinned = true, want false")
	}

	// Update keeps the original CreatedAt.
	env.Pinned = true
	env.PlanID = "plan-2"
	env.ExpiresAt = nil
	if err := store.UpsertEnvironment(ctx, env); err != nil {
		t.Fatalf("failed to update environment: %v", err)
	}

	got, err = store.GetEnvironment(ctx, "dev_alice")
	if err != nil {
		t.Fatalf("failed to get environment: %v", err)
	}
	if !got.Pinned || got.PlanID != "plan-2" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", got.ExpiresAt)
	}
	if got.CreatedAt.Unix() != firstCreated.Unix() {
		t.Errorf("CreatedAt changed on update: %v, want %v", got.CreatedAt, firstCreated)
	}

	if _, err := store.GetEnvironment(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEnvironment(missing) = %v, want ErrNotFound", err)
	}

	if err := store.UpsertEnvironment(ctx, &Environment{}); err == nil {
		t.Error("upsert without name succeeded, want error")
	}
}

func TestListEnvironments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 21)
	for _, name := range []string{"prod", "dev_bob", "dev_alice"} {
		env := &Environment{Name: name, SuffixTarget: config.SuffixTargetSchema, StartAt: start, EndAt: end}
		if err := store.UpsertEnvironment(ctx, env); err != nil {
			t.Fatalf("failed to upsert %s: %v", name, err)
		}
	}

	envs, err := store.ListEnvironments(ctx)
	if err != nil {
		t.Fatalf("failed to list environments: %v", err)
	}
	if len(envs) != 3 {
		t.Fatalf("got %d environments, want 3", len(envs))
	}
	for i, want := range []string{"dev_alice", "dev_bob", "prod"} {
		if envs[i].Name != want {
			t.Errorf("envs[%d].Name = %q, want %q", i, envs[i].Name, want)
		}
	}
}

func TestInvalidateEnvironment(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	env := &Environment{Name: "dev_alice", SuffixTarget: config.SuffixTargetSchema, StartAt: start, EndAt: start}
	if err := store.UpsertEnvironment(ctx, env); err != nil {
		t.Fatalf("failed to upsert environment: %v", err)
	}

	if err := store.InvalidateEnvironment(ctx, "dev_alice"); err != nil {
		t.Fatalf("failed to invalidate environment: %v", err)
	}

	got, err := store.GetEnvironment(ctx, "dev_alice")
	if err != nil {
		t.Fatalf("failed to get environment: %v", err)
	}
	if got.ExpiresAt == nil {
		t.Fatal("ExpiresAt = nil after invalidate")
	}
	if !got.Expired(time.Now().UTC().Add(time.Second)) {
		t.Error("environment not expired after invalidate")
	}

	if err := store.InvalidateEnvironment(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("InvalidateEnvironment(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	seed := []*Environment{
		{Name: "stale", StartAt: start, EndAt: start, ExpiresAt: &past},
		{Name: "pinned_stale", StartAt: start, EndAt: start, ExpiresAt: &past, Pinned: true},
		{Name: "prod", StartAt: start, EndAt: start, ExpiresAt: &past},
		{Name: "protected_stale", StartAt: start, EndAt: start, ExpiresAt: &past},
		{Name: "active", StartAt: start, EndAt: start, ExpiresAt: &future},
		{Name: "forever", StartAt: start, EndAt: start},
	}
	for _, env := range seed {
		env.SuffixTarget = config.SuffixTargetSchema
		if err := store.UpsertEnvironment(ctx, env); err != nil {
			t.Fatalf("failed to upsert %s: %v", env.Name, err)
		}
	}

	deleted, err := store.DeleteExpired(ctx, []string{"prod", "protected_stale"}, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != "stale" {
		t.Errorf("deleted = %v, want [stale]", deleted)
	}

	envs, err := store.ListEnvironments(ctx)
	if err != nil {
		t.Fatalf("failed to list environments: %v", err)
	}
	names := make([]string, 0, len(envs))
	for _, env := range envs {
		names = append(names, env.Name)
	}
	want := []string{"active", "forever", "pinned_stale", "prod", "protected_stale"}
	if len(names) != len(want) {
		t.Fatalf("remaining = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("remaining = %v, want %v", names, want)
			break
		}
	}

	// Nothing left to delete.
	deleted, err = store.DeleteExpired(ctx, []string{"prod", "protected_stale"}, now)
	if err != nil {
		t.Fatalf("second DeleteExpired failed: %v", err)
	}
	if len(deleted) != 0 {
		t.Errorf("second DeleteExpired removed %v, want nothing", deleted)
	}
}

func TestMeta(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SetMeta(ctx, MetaKeyVersion, "0.1.0"); err != nil {
		t.Fatalf("failed to set meta: %v", err)
	}
	value, err := store.GetMeta(ctx, MetaKeyVersion)
	if err != nil {
		t.Fatalf("failed to get meta: %v", err)
	}
	if value != "0.1.0" {
		t.Errorf("meta = %q, want %q", value, "0.1.0")
	}

	if err := store.SetMeta(ctx, MetaKeyVersion, "0.2.0"); err != nil {
		t.Fatalf("failed to overwrite meta: %v", err)
	}
	value, err = store.GetMeta(ctx, MetaKeyVersion)
	if err != nil {
		t.Fatalf("failed to get meta: %v", err)
	}
	if value != "0.2.0" {
		t.Errorf("meta = %q, want %q", value, "0.2.0")
	}

	if _, err := store.GetMeta(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMeta(missing) = %v, want ErrNotFound", err)
	}
}

func TestEnvironment_Expired(t *testing.T) {
	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (&Environment{}).Expired(now) {
		t.Error("environment without expiry reported expired")
	}
	if !(&Environment{ExpiresAt: &past}).Expired(now) {
		t.Error("past expiry not reported expired")
	}
	if !(&Environment{ExpiresAt: &now}).Expired(now) {
		t.Error("expiry at now not reported expired")
	}
	if (&Environment{ExpiresAt: &future}).Expired(now) {
		t.Error("future expiry reported expired")
	}
}

func TestRebind(t *testing.T) {
	sqliteStore := &DBStore{driver: driverSQLite}
	postgresStore := &DBStore{driver: driverPostgres}

	query := "SELECT * FROM environments WHERE name = ? AND pinned = ?"
	if got := sqliteStore.rebind(query); got != query {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
	want := "SELECT * FROM environments WHERE name = $1 AND pinned = $2"
	if got := postgresStore.rebind(query); got != want {
		t.Errorf("postgres rebind = %q, want %q", got, want)
	}
}
