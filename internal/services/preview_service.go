package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/errorpage"
	"github.com/cf-error-page/editor/internal/platform/observability"
)

// PreviewServiceDeps wires the collaborators of the preview service.
type PreviewServiceDeps struct {
	Renderer PageRenderer
	Resolver MetadataResolver
	Metrics  *observability.Metrics
}

type previewService struct {
	renderer PageRenderer
	resolver MetadataResolver
	metrics  *observability.Metrics
}

var _ PreviewService = (*previewService)(nil)

// NewPreviewService constructs a PreviewService.
func NewPreviewService(deps PreviewServiceDeps) (PreviewService, error) {
	if deps.Renderer == nil {
		return nil, errors.New("preview service: renderer is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("preview service: metadata resolver is required")
	}
	return &previewService{renderer: deps.Renderer, resolver: deps.Resolver, metrics: deps.Metrics}, nil
}

// Resolve returns the draft with live edge metadata filled and links sanitised.
func (s *previewService) Resolve(_ context.Context, cmd PreviewCommand) (domain.ErrorPageParams, error) {
	if err := cmd.Params.Validate(); err != nil {
		return domain.ErrorPageParams{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	params := errorpage.SanitizeLinks(cmd.Params)
	return s.resolver.Resolve(params, cmd.Live.RayHeader, cmd.Live.RemoteAddr), nil
}

// Render produces the draft page with user markup escaped.
func (s *previewService) Render(ctx context.Context, cmd PreviewCommand) (string, error) {
	params, err := s.Resolve(ctx, cmd)
	if err != nil {
		return "", err
	}
	page, err := s.renderer.Render(params, errorpage.Options{AllowHTML: false, PageURL: cmd.PageURL})
	if err != nil {
		return "", err
	}
	s.metrics.PageRendered(ctx, "preview")
	return page, nil
}
