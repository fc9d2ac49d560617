package services

import (
	"context"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/errorpage"
)

// ShareService persists parameter sets under short codes and plays them back.
type ShareService interface {
	Create(ctx context.Context, params domain.ErrorPageParams) (domain.Item, error)
	Fetch(ctx context.Context, name string) (domain.ErrorPageParams, error)
	Page(ctx context.Context, cmd SharePageCommand) (string, error)
}

// PreviewService renders editor drafts without persisting them.
type PreviewService interface {
	Resolve(ctx context.Context, cmd PreviewCommand) (domain.ErrorPageParams, error)
	Render(ctx context.Context, cmd PreviewCommand) (string, error)
}

// ExampleService exposes the bundled example pages.
type ExampleService interface {
	List(ctx context.Context) []string
	Params(ctx context.Context, name string) (domain.ErrorPageParams, error)
	Page(ctx context.Context, cmd ExamplePageCommand) (string, error)
}

// SystemService reports process health for readiness probes.
type SystemService interface {
	HealthReport(ctx context.Context) (domain.SystemHealthReport, error)
}

// PageRenderer turns parameters into an HTML document.
type PageRenderer interface {
	Render(params domain.ErrorPageParams, opts errorpage.Options) (string, error)
}

// MetadataResolver fills the live Cloudflare fields of a parameter set.
type MetadataResolver interface {
	Resolve(params domain.ErrorPageParams, rayHeader, remoteAddr string) domain.ErrorPageParams
}

// LiveRequest carries the per-request edge metadata merged into rendered pages.
type LiveRequest struct {
	RayHeader  string
	RemoteAddr string
}

// SharePageCommand requests the HTML playback of a shared page.
type SharePageCommand struct {
	Name string
	// EditorURL is the absolute editor location; the creator link points at it.
	EditorURL string
	PageURL   string
	Live      LiveRequest
}

// PreviewCommand carries an unsaved draft.
type PreviewCommand struct {
	Params  domain.ErrorPageParams
	PageURL string
	Live    LiveRequest
}

// ExamplePageCommand requests one bundled example rendered as HTML.
type ExamplePageCommand struct {
	Name    string
	PageURL string
	Live    LiveRequest
}
