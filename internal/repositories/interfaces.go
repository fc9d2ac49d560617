package repositories

import (
	"context"

	"github.com/cf-error-page/editor/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ItemRepository persists share items. Insert is atomic: on error nothing is visible to
// readers. Inserting a name that already exists fails with a conflict RepositoryError.
type ItemRepository interface {
	Insert(ctx context.Context, item domain.Item) error
	FindByName(ctx context.Context, name string) (domain.Item, error)
	Ping(ctx context.Context) error
	Close() error
}

// HealthRepository surfaces dependency health information for readiness probes.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
