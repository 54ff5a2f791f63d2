package state

import (
	"context"
	"errors"
	"time"

	"github.com/mesadata/mesa/pkg/config"
)

// MetaKeyVersion is the state_meta key recording the mesa version that last
// ran migrations.
const MetaKeyVersion = "mesa_version"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Environment is a named virtual namespace tracked in the state backend.
type Environment struct {
	// Name is the normalized environment name and primary key.
	Name string `json:"name"`

	// SuffixTarget records where the environment name was appended when
	// its views were created.
	SuffixTarget config.SuffixTarget `json:"suffix_target"`

	// Catalog is the catalog the environment's views live in. Empty when
	// the connection default applied.
	Catalog string `json:"catalog,omitempty"`

	// StartAt and EndAt bound the data interval the environment covers.
	StartAt time.Time `json:"start_at"`
	EndAt   time.Time `json:"end_at"`

	// ExpiresAt is when the environment becomes eligible for cleanup.
	// Nil means it never expires.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Pinned excludes the environment from expiry cleanup.
	Pinned bool `json:"pinned"`

	// PlanID is the plan that last modified the environment.
	PlanID string `json:"plan_id,omitempty"`

	// CreatedAt and UpdatedAt are maintained by the store.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the environment is expired at the given time.
func (e *Environment) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !e.ExpiresAt.After(now)
}

// Store defines the persistence operations for environment state.
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
	Ping(ctx context.Context) error

	// Environment operations
	UpsertEnvironment(ctx context.Context, env *Environment) error
	GetEnvironment(ctx context.Context, name string) (*Environment, error)
	ListEnvironments(ctx context.Context) ([]*Environment, error)
	InvalidateEnvironment(ctx context.Context, name string) error
	DeleteExpired(ctx context.Context, protected []string, now time.Time) ([]string, error)

	// Metadata
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	SchemaVersion(ctx context.Context) (uint, bool, error)
}
