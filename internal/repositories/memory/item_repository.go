// Package memory provides an in-process ItemRepository for tests and throwaway deployments.
package memory

import (
	"context"
	"sync"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/repositories"
)

// ItemRepository keeps items in a map guarded by a mutex.
type ItemRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Item
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)

// NewItemRepository returns an empty repository.
func NewItemRepository() *ItemRepository {
	return &ItemRepository{items: make(map[string]domain.Item)}
}

// Insert stores item unless its name is taken.
func (r *ItemRepository) Insert(ctx context.Context, item domain.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[item.Name]; exists {
		return repositories.NewConflictError("memory.items.insert", nil)
	}
	item.Params = item.Params.Clone()
	r.items[item.Name] = item
	return nil
}

// FindByName returns a copy of the stored item.
func (r *ItemRepository) FindByName(ctx context.Context, name string) (domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return domain.Item{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[name]
	if !ok {
		return domain.Item{}, repositories.NewNotFoundError("memory.items.find")
	}
	item.Params = item.Params.Clone()
	return item, nil
}

// Ping always succeeds.
func (r *ItemRepository) Ping(ctx context.Context) error { return ctx.Err() }

// Close is a no-op.
func (r *ItemRepository) Close() error { return nil }

// Len reports the number of stored items.
func (r *ItemRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
