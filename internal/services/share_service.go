package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/errorpage"
	"github.com/cf-error-page/editor/internal/platform/observability"
	"github.com/cf-error-page/editor/internal/repositories"
)

var (
	// ErrShareNotFound indicates no item exists under the requested name.
	ErrShareNotFound = errors.New("share: not found")
	// ErrSharePersistence indicates the item could not be stored.
	ErrSharePersistence = errors.New("share: persistence failed")
	// ErrInvalidParams indicates the caller supplied an unusable parameter set.
	ErrInvalidParams = errors.New("share: invalid parameters")
)

const (
	defaultShareCodeLength = 7
	defaultCreateAttempts  = 3
	defaultCreatorLabel    = "CF Error Page Editor"
)

// ShareServiceDeps wires the collaborators of the share service.
type ShareServiceDeps struct {
	Items    repositories.ItemRepository
	Renderer PageRenderer
	Resolver MetadataResolver
	Metrics  *observability.Metrics
	Logger   *zap.Logger
	Clock    func() time.Time
	// CodeGenerator yields candidate names; defaults to crypto/rand over [a-z0-9].
	CodeGenerator func() (string, error)
	CodeLength    int
	// CreateAttempts bounds how many fresh codes are tried when a name is already taken.
	CreateAttempts int
	CreatorLabel   string
}

type shareService struct {
	items        repositories.ItemRepository
	renderer     PageRenderer
	resolver     MetadataResolver
	metrics      *observability.Metrics
	logger       *zap.Logger
	now          func() time.Time
	newCode      func() (string, error)
	attempts     int
	creatorLabel string
}

var _ ShareService = (*shareService)(nil)

// NewShareService constructs a ShareService.
func NewShareService(deps ShareServiceDeps) (ShareService, error) {
	if deps.Items == nil {
		return nil, errors.New("share service: item repository is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("share service: renderer is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("share service: metadata resolver is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	length := deps.CodeLength
	if length <= 0 {
		length = defaultShareCodeLength
	}
	newCode := deps.CodeGenerator
	if newCode == nil {
		newCode = NewShareCodeGenerator(nil, length)
	}
	attempts := deps.CreateAttempts
	if attempts <= 0 {
		attempts = defaultCreateAttempts
	}
	label := strings.TrimSpace(deps.CreatorLabel)
	if label == "" {
		label = defaultCreatorLabel
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &shareService{
		items:        deps.Items,
		renderer:     deps.Renderer,
		resolver:     deps.Resolver,
		metrics:      deps.Metrics,
		logger:       logger.Named("share"),
		now:          func() time.Time { return clock().UTC() },
		newCode:      newCode,
		attempts:     attempts,
		creatorLabel: label,
	}, nil
}

// Create stores params under a fresh code. A taken code is retried with a new one up to the
// configured attempt count; any other store failure aborts immediately.
func (s *shareService) Create(ctx context.Context, params domain.ErrorPageParams) (domain.Item, error) {
	if err := params.Validate(); err != nil {
		return domain.Item{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		name, err := s.newCode()
		if err != nil {
			s.metrics.ShareFailed(ctx, "code")
			return domain.Item{}, fmt.Errorf("%w: generate code: %v", ErrSharePersistence, err)
		}

		item := domain.Item{Name: name, Params: params.Clone(), CreatedAt: s.now()}
		err = s.items.Insert(ctx, item)
		if err == nil {
			s.metrics.ShareCreated(ctx, attempt)
			return item, nil
		}
		lastErr = err
		if !repositories.IsConflict(err) {
			break
		}
		s.logger.Debug("share code taken, retrying",
			zap.String("name", name),
			zap.Int("attempt", attempt),
		)
	}

	reason := "store"
	if repositories.IsConflict(lastErr) {
		reason = "conflict"
	}
	s.metrics.ShareFailed(ctx, reason)
	s.logger.Warn("share create failed", zap.String("reason", reason), zap.Error(lastErr))
	return domain.Item{}, fmt.Errorf("%w: %v", ErrSharePersistence, lastErr)
}

// Fetch returns the stored parameters without their render-time fields.
func (s *shareService) Fetch(ctx context.Context, name string) (domain.ErrorPageParams, error) {
	item, err := s.items.FindByName(ctx, name)
	if err != nil {
		if repositories.IsNotFound(err) {
			s.metrics.ShareFetched(ctx, false)
			return domain.ErrorPageParams{}, ErrShareNotFound
		}
		return domain.ErrorPageParams{}, fmt.Errorf("share: fetch %q: %w", name, err)
	}
	s.metrics.ShareFetched(ctx, true)
	return item.Params.WithoutTransient(), nil
}

// Page renders a shared item with a creator credit, sanitised links and live edge metadata.
func (s *shareService) Page(ctx context.Context, cmd SharePageCommand) (string, error) {
	params, err := s.Fetch(ctx, cmd.Name)
	if err != nil {
		return "", err
	}

	params.CreatorInfo = &domain.CreatorInfo{
		Hidden: domain.Bool(false),
		Text:   domain.String(s.creatorLabel),
		Link:   domain.String(cmd.EditorURL + "#from=" + cmd.Name),
	}
	params = errorpage.SanitizeLinks(params)
	params = s.resolver.Resolve(params, cmd.Live.RayHeader, cmd.Live.RemoteAddr)

	page, err := s.renderer.Render(params, errorpage.Options{AllowHTML: false, PageURL: cmd.PageURL})
	if err != nil {
		return "", err
	}
	s.metrics.PageRendered(ctx, "share")
	return page, nil
}
