package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/errorpage"
	"github.com/cf-error-page/editor/internal/platform/observability"
)

// ErrExampleNotFound indicates no bundled example has the requested name.
var ErrExampleNotFound = errors.New("examples: not found")

// ExampleServiceDeps wires the collaborators of the example service.
type ExampleServiceDeps struct {
	FS       fs.FS
	Dir      string
	Renderer PageRenderer
	Resolver MetadataResolver
	Metrics  *observability.Metrics
}

type exampleService struct {
	examples map[string]domain.ErrorPageParams
	names    []string
	renderer PageRenderer
	resolver MetadataResolver
	metrics  *observability.Metrics
}

var _ ExampleService = (*exampleService)(nil)

// NewExampleService decodes every <name>.yaml document under deps.Dir up front. A malformed
// example fails construction.
func NewExampleService(deps ExampleServiceDeps) (ExampleService, error) {
	if deps.FS == nil {
		return nil, errors.New("example service: filesystem is required")
	}
	if deps.Renderer == nil {
		return nil, errors.New("example service: renderer is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("example service: metadata resolver is required")
	}
	dir := deps.Dir
	if dir == "" {
		dir = "."
	}

	entries, err := fs.ReadDir(deps.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("example service: read %s: %w", dir, err)
	}

	svc := &exampleService{
		examples: make(map[string]domain.ErrorPageParams),
		renderer: deps.Renderer,
		resolver: deps.Resolver,
		metrics:  deps.Metrics,
	}
	for _, entry := range entries {
		ext := path.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		raw, err := fs.ReadFile(deps.FS, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("example service: read %s: %w", entry.Name(), err)
		}
		params, err := decodeYAMLParams(raw)
		if err != nil {
			return nil, fmt.Errorf("example service: decode %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ext)
		svc.examples[name] = params
		svc.names = append(svc.names, name)
	}
	sort.Strings(svc.names)
	return svc, nil
}

// decodeYAMLParams routes YAML through JSON so examples obey the same decoding rules as
// client payloads.
func decodeYAMLParams(raw []byte) (domain.ErrorPageParams, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return domain.ErrorPageParams{}, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return domain.ErrorPageParams{}, err
	}
	return domain.DecodeParams(encoded)
}

func (s *exampleService) List(context.Context) []string {
	return append([]string(nil), s.names...)
}

func (s *exampleService) Params(_ context.Context, name string) (domain.ErrorPageParams, error) {
	params, ok := s.examples[name]
	if !ok {
		return domain.ErrorPageParams{}, ErrExampleNotFound
	}
	return params.Clone(), nil
}

// Page renders the example with live metadata. Examples ship with the binary, so their
// markup is emitted verbatim.
func (s *exampleService) Page(ctx context.Context, cmd ExamplePageCommand) (string, error) {
	params, err := s.Params(ctx, cmd.Name)
	if err != nil {
		return "", err
	}
	params = s.resolver.Resolve(params, cmd.Live.RayHeader, cmd.Live.RemoteAddr)
	page, err := s.renderer.Render(params, errorpage.Options{AllowHTML: true, PageURL: cmd.PageURL})
	if err != nil {
		return "", err
	}
	s.metrics.PageRendered(ctx, "example")
	return page, nil
}
