package firestore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cf-error-page/editor/internal/domain"
	pfirestore "github.com/cf-error-page/editor/internal/platform/firestore"
	"github.com/cf-error-page/editor/internal/repositories"
)

func TestNewItemRepositoryRequiresProvider(t *testing.T) {
	if _, err := NewItemRepository(nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestItemRepositoryEmulatorRoundTrip(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider := pfirestore.NewProvider(pfirestore.Config{ProjectID: "cf-error-page-test", EmulatorHost: host})
	repo, err := NewItemRepository(provider)
	if err != nil {
		t.Fatalf("NewItemRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	name := "t" + time.Now().UTC().Format("150405.000000")
	item := domain.Item{
		Name:      name,
		Params:    domain.ErrorPageParams{Title: domain.String("Bad gateway"), ErrorCode: domain.String("502")},
		CreatedAt: time.Now(),
	}
	if err := repo.Insert(ctx, item); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := repo.Insert(ctx, item); !repositories.IsConflict(err) {
		t.Fatalf("expected conflict on duplicate insert, got %v", err)
	}

	got, err := repo.FindByName(ctx, name)
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if domain.Value(got.Params.Title) != "Bad gateway" || domain.Value(got.Params.ErrorCode) != "502" {
		t.Fatalf("unexpected params %+v", got.Params)
	}

	if _, err := repo.FindByName(ctx, name+"-missing"); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
