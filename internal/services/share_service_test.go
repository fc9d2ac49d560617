package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cf-error-page/editor/internal/cfmeta"
	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/repositories"
)

func newTestShareService(t *testing.T, repo repositories.ItemRepository, renderer PageRenderer, deps ShareServiceDeps) ShareService {
	t.Helper()
	deps.Items = repo
	deps.Renderer = renderer
	deps.Resolver = cfmeta.NewResolver(stubLocator{"NRT": "Tokyo"})
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC) }
	}
	svc, err := NewShareService(deps)
	if err != nil {
		t.Fatalf("NewShareService: %v", err)
	}
	return svc
}

func TestShareServiceCreateStoresItem(t *testing.T) {
	repo := newStubItemRepository()
	svc := newTestShareService(t, repo, &captureRenderer{}, ShareServiceDeps{CodeGenerator: sequenceCodes("abc1234")})

	item, err := svc.Create(context.Background(), domain.ErrorPageParams{Title: domain.String("Bad gateway")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Name != "abc1234" {
		t.Fatalf("unexpected name %q", item.Name)
	}
	if !item.CreatedAt.Equal(time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC)) {
		t.Fatalf("unexpected created at %s", item.CreatedAt)
	}
	stored, ok := repo.items["abc1234"]
	if !ok || domain.Value(stored.Params.Title) != "Bad gateway" {
		t.Fatalf("expected item stored, got %+v", repo.items)
	}
}

func TestShareServiceCreateRetriesOnConflict(t *testing.T) {
	repo := newStubItemRepository()
	repo.insertErrs = []error{conflictErr(), nil}
	svc := newTestShareService(t, repo, &captureRenderer{}, ShareServiceDeps{CodeGenerator: sequenceCodes("taken00", "fresh00")})

	item, err := svc.Create(context.Background(), domain.ErrorPageParams{})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if item.Name != "fresh00" {
		t.Fatalf("expected second code, got %q", item.Name)
	}
	if len(repo.inserted) != 2 {
		t.Fatalf("expected two insert attempts, got %d", len(repo.inserted))
	}
}

func TestShareServiceCreateGivesUpAfterAttempts(t *testing.T) {
	repo := newStubItemRepository()
	repo.insertErrs = []error{conflictErr(), conflictErr(), conflictErr()}
	svc := newTestShareService(t, repo, &captureRenderer{}, ShareServiceDeps{
		CodeGenerator:  sequenceCodes("a", "b", "c", "d"),
		CreateAttempts: 3,
	})

	_, err := svc.Create(context.Background(), domain.ErrorPageParams{})
	if !errors.Is(err, ErrSharePersistence) {
		t.Fatalf("expected ErrSharePersistence, got %v", err)
	}
	if len(repo.inserted) != 3 {
		t.Fatalf("expected three attempts, got %d", len(repo.inserted))
	}
}

func TestShareServiceCreateFailFastWithSingleAttempt(t *testing.T) {
	repo := newStubItemRepository()
	repo.insertErrs = []error{conflictErr()}
	svc := newTestShareService(t, repo, &captureRenderer{}, ShareServiceDeps{
		CodeGenerator:  sequenceCodes("a", "b"),
		CreateAttempts: 1,
	})

	if _, err := svc.Create(context.Background(), domain.ErrorPageParams{}); !errors.Is(err, ErrSharePersistence) {
		t.Fatalf("expected ErrSharePersistence, got %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(repo.inserted))
	}
}

func TestShareServiceCreateDoesNotRetryStoreFailure(t *testing.T) {
	repo := newStubItemRepository()
	repo.insertErrs = []error{repositories.NewUnavailableError("stub.insert", errors.New("disk full"))}
	svc := newTestShareService(t, repo, &captureRenderer{}, ShareServiceDeps{CodeGenerator: sequenceCodes("a", "b", "c")})

	if _, err := svc.Create(context.Background(), domain.ErrorPageParams{}); !errors.Is(err, ErrSharePersistence) {
		t.Fatalf("expected ErrSharePersistence, got %v", err)
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected no retry, got %d attempts", len(repo.inserted))
	}
}

func TestShareServiceCreateRejectsInvalidParams(t *testing.T) {
	repo := newStubItemRepository()
	svc := newTestShareService(t, repo, &captureRenderer{}, ShareServiceDeps{CodeGenerator: sequenceCodes("a")})

	_, err := svc.Create(context.Background(), domain.ErrorPageParams{ErrorSource: domain.String("dns")})
	if !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Fatalf("expected nothing inserted")
	}
}

func TestShareServiceFetchStripsTransientFields(t *testing.T) {
	repo := newStubItemRepository()
	repo.items["abc1234"] = domain.Item{Name: "abc1234", Params: domain.ErrorPageParams{
		Title:    domain.String("Bad gateway"),
		Time:     domain.String("2024-01-01 00:00:00 UTC"),
		RayID:    domain.String("0123456789abcdef"),
		ClientIP: domain.String("198.51.100.7"),
	}}
	svc := newTestShareService(t, repo, &captureRenderer{}, ShareServiceDeps{})

	params, err := svc.Fetch(context.Background(), "abc1234")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if params.Time != nil || params.RayID != nil || params.ClientIP != nil {
		t.Fatalf("expected transient fields stripped: %+v", params)
	}
	if domain.Value(params.Title) != "Bad gateway" {
		t.Fatalf("unexpected title %q", domain.Value(params.Title))
	}

	if _, err := svc.Fetch(context.Background(), "ABC1234"); !errors.Is(err, ErrShareNotFound) {
		t.Fatalf("expected exact-name lookup, got %v", err)
	}
}

func TestShareServiceFetchSurfacesStoreErrors(t *testing.T) {
	repo := newStubItemRepository()
	repo.findErr = repositories.NewUnavailableError("stub.find", errors.New("locked"))
	svc := newTestShareService(t, repo, &captureRenderer{}, ShareServiceDeps{})

	_, err := svc.Fetch(context.Background(), "abc1234")
	if err == nil || errors.Is(err, ErrShareNotFound) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestShareServicePageInjectsCreatorAndLiveMetadata(t *testing.T) {
	repo := newStubItemRepository()
	repo.items["abc1234"] = domain.Item{Name: "abc1234", Params: domain.ErrorPageParams{
		Title:           domain.String("Bad gateway"),
		RayID:           domain.String("stale"),
		MoreInformation: &domain.MoreInformation{Link: domain.String("example.com")},
		PerfSecBy:       &domain.PerfSecBy{Link: domain.String("javascript:alert(1)")},
	}}
	renderer := &captureRenderer{}
	svc := newTestShareService(t, repo, renderer, ShareServiceDeps{CreatorLabel: "Made with the editor"})

	page, err := svc.Page(context.Background(), SharePageCommand{
		Name:      "abc1234",
		EditorURL: "https://pages.example/editor/",
		PageURL:   "https://pages.example/s/abc1234",
		Live:      LiveRequest{RayHeader: "8f1c2d3e4f5a6b7c-NRT", RemoteAddr: "203.0.113.9"},
	})
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !strings.Contains(page, "Bad gateway") {
		t.Fatalf("unexpected page %q", page)
	}

	got := renderer.params
	if renderer.opts.AllowHTML {
		t.Fatalf("shared pages must not allow html")
	}
	if renderer.opts.PageURL != "https://pages.example/s/abc1234" {
		t.Fatalf("unexpected page url %q", renderer.opts.PageURL)
	}
	if got.CreatorInfo == nil || domain.IsTrue(got.CreatorInfo.Hidden) {
		t.Fatalf("expected visible creator info: %+v", got.CreatorInfo)
	}
	if domain.Value(got.CreatorInfo.Text) != "Made with the editor" {
		t.Fatalf("unexpected creator text %q", domain.Value(got.CreatorInfo.Text))
	}
	if domain.Value(got.CreatorInfo.Link) != "https://pages.example/editor/#from=abc1234" {
		t.Fatalf("unexpected creator link %q", domain.Value(got.CreatorInfo.Link))
	}
	if domain.Value(got.MoreInformation.Link) != "https://example.com" {
		t.Fatalf("expected sanitised more-info link, got %q", domain.Value(got.MoreInformation.Link))
	}
	if domain.Value(got.PerfSecBy.Link) != "#javascript:alert(1)" {
		t.Fatalf("expected sanitised perf link, got %q", domain.Value(got.PerfSecBy.Link))
	}
	if domain.Value(got.RayID) != "8f1c2d3e4f5a6b7c" {
		t.Fatalf("expected live ray id, got %q", domain.Value(got.RayID))
	}
	if domain.Value(got.ClientIP) != "203.0.113.9" {
		t.Fatalf("expected live client ip, got %q", domain.Value(got.ClientIP))
	}
	if domain.Value(got.CloudflareStatus.Location) != "Tokyo" {
		t.Fatalf("expected resolved location, got %q", domain.Value(got.CloudflareStatus.Location))
	}
}

func TestShareServicePageNotFound(t *testing.T) {
	svc := newTestShareService(t, newStubItemRepository(), &captureRenderer{}, ShareServiceDeps{})
	if _, err := svc.Page(context.Background(), SharePageCommand{Name: "missing"}); !errors.Is(err, ErrShareNotFound) {
		t.Fatalf("expected ErrShareNotFound, got %v", err)
	}
}

func TestNewShareServiceRequiresDependencies(t *testing.T) {
	if _, err := NewShareService(ShareServiceDeps{}); err == nil {
		t.Fatal("expected error without repository")
	}
	if _, err := NewShareService(ShareServiceDeps{Items: newStubItemRepository()}); err == nil {
		t.Fatal("expected error without renderer")
	}
}

func TestShareCodeGeneratorAlphabetAndLength(t *testing.T) {
	gen := NewShareCodeGenerator(nil, 7)
	for i := 0; i < 50; i++ {
		code, err := gen()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 7 {
			t.Fatalf("unexpected length %d", len(code))
		}
		for _, r := range code {
			if !strings.ContainsRune(shareCodeAlphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, code)
			}
		}
	}
}

func TestShareCodeGeneratorRejectsBiasedBytes(t *testing.T) {
	// 255 is above the rejection bound and must be skipped; 0 and 35 map to 'a' and '9'.
	gen := NewShareCodeGenerator(bytes.NewReader([]byte{255, 0, 35, 0, 0, 0}), 2)
	code, err := gen()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if code != "a9" {
		t.Fatalf("unexpected code %q", code)
	}

	short := NewShareCodeGenerator(bytes.NewReader([]byte{1}), 3)
	if _, err := short(); err == nil {
		t.Fatal("expected error when entropy runs out")
	}
}
