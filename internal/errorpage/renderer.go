package errorpage

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/cf-error-page/editor/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Config carries deployment-level page settings. IconURL and ImageURL may contain a
// {status} placeholder.
type Config struct {
	IconURL  string
	IconType string
	ImageURL string
	SiteName string
}

// Options controls a single render.
type Options struct {
	// AllowHTML emits what_happened and what_can_i_do verbatim instead of escaping them.
	AllowHTML bool
	// PageURL is the canonical URL of the page being rendered.
	PageURL string
}

// Renderer produces complete error page documents.
type Renderer struct {
	cfg        Config
	normalizer *Normalizer
	body       *template.Template
	layout     *template.Template
}

// NewRenderer parses the embedded templates. A malformed template panics, since it can only
// be a build defect.
func NewRenderer(cfg Config, normalizer *Normalizer) *Renderer {
	if normalizer == nil {
		normalizer = NewNormalizer()
	}
	return &Renderer{
		cfg:        cfg,
		normalizer: normalizer,
		body:       template.Must(template.New("page.tmpl").ParseFS(templateFS, "templates/page.tmpl")),
		layout:     template.Must(template.New("layout.tmpl").ParseFS(templateFS, "templates/layout.tmpl")),
	}
}

// Render normalises params and returns the full HTML document.
func (r *Renderer) Render(params domain.ErrorPageParams, opts Options) (string, error) {
	normalized, err := r.normalizer.Normalize(params, opts.AllowHTML)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	if err := r.body.Execute(&body, newPageView(normalized)); err != nil {
		return "", fmt.Errorf("errorpage: render body: %w", err)
	}

	var doc bytes.Buffer
	err = r.layout.Execute(&doc, layoutView{
		Meta: r.Meta(params, opts.PageURL),
		Body: template.HTML(body.String()),
	})
	if err != nil {
		return "", fmt.Errorf("errorpage: render layout: %w", err)
	}
	return doc.String(), nil
}

// Meta computes the head slot values for params. It reads the caller's params rather than
// the normalised copy so the description is stripped of markup, not escaped.
func (r *Renderer) Meta(params domain.ErrorPageParams, pageURL string) PageMeta {
	status := OverallStatus(params)
	return PageMeta{
		Title:       htmlTitle(params),
		Description: Description(params),
		PageURL:     pageURL,
		IconURL:     ExpandStatus(r.cfg.IconURL, status),
		IconType:    r.cfg.IconType,
		ImageURL:    ExpandStatus(r.cfg.ImageURL, status),
		SiteName:    r.cfg.SiteName,
		OG:          OpenGraph{Type: "website"},
		Twitter:     Twitter{Card: "summary"},
	}
}

type layoutView struct {
	Meta PageMeta
	Body template.HTML
}
