// Package firestore provides a Firestore-backed ItemRepository.
package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/cf-error-page/editor/internal/domain"
	pfirestore "github.com/cf-error-page/editor/internal/platform/firestore"
	"github.com/cf-error-page/editor/internal/repositories"
)

const itemsCollection = "items"

// ItemRepository stores one document per share item, keyed by the item name.
type ItemRepository struct {
	provider   *pfirestore.Provider
	collection string
}

var _ repositories.ItemRepository = (*ItemRepository)(nil)

type itemDocument struct {
	Params    string    `firestore:"params"`
	CreatedAt time.Time `firestore:"createdAt"`
}

// NewItemRepository constructs a Firestore-backed item repository.
func NewItemRepository(provider *pfirestore.Provider) (*ItemRepository, error) {
	if provider == nil {
		return nil, errors.New("item repository: firestore provider is required")
	}
	return &ItemRepository{provider: provider, collection: itemsCollection}, nil
}

func (r *ItemRepository) doc(ctx context.Context, name string) (*firestore.DocumentRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("item repository not initialised")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("item repository: name is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(r.collection).Doc(name), nil
}

// Insert creates the item document. Create fails with AlreadyExists when the name is taken,
// which surfaces as a conflict.
func (r *ItemRepository) Insert(ctx context.Context, item domain.Item) error {
	ref, err := r.doc(ctx, item.Name)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(item.Params)
	if err != nil {
		return fmt.Errorf("item repository: encode params: %w", err)
	}
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	doc := itemDocument{Params: string(payload), CreatedAt: createdAt.UTC()}
	if _, err := ref.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("items.insert", err)
	}
	return nil
}

// FindByName fetches the item document with the given name.
func (r *ItemRepository) FindByName(ctx context.Context, name string) (domain.Item, error) {
	ref, err := r.doc(ctx, name)
	if err != nil {
		return domain.Item{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return domain.Item{}, pfirestore.WrapError("items.find", err)
	}
	var doc itemDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Item{}, fmt.Errorf("item repository: decode %q: %w", name, err)
	}
	var params domain.ErrorPageParams
	if err := json.Unmarshal([]byte(doc.Params), &params); err != nil {
		return domain.Item{}, fmt.Errorf("item repository: decode params for %q: %w", name, err)
	}
	return domain.Item{Name: ref.ID, Params: params, CreatedAt: doc.CreatedAt.UTC()}, nil
}

// Ping performs a single-document read against the collection.
func (r *ItemRepository) Ping(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return errors.New("item repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	iter := client.Collection(r.collection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return pfirestore.WrapError("items.ping", err)
	}
	return nil
}

// Close releases the shared client.
func (r *ItemRepository) Close() error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close()
}
