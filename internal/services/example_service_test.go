package services

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/cf-error-page/editor/internal/cfmeta"
	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/examples"
)

func TestExampleServiceLoadsBundledExamples(t *testing.T) {
	renderer := &captureRenderer{}
	svc, err := NewExampleService(ExampleServiceDeps{
		FS:       examples.FS,
		Dir:      examples.Dir,
		Renderer: renderer,
		Resolver: cfmeta.NewResolver(nil),
	})
	if err != nil {
		t.Fatalf("NewExampleService: %v", err)
	}

	names := svc.List(context.Background())
	want := []string{"bad-gateway", "default", "web-server-down"}
	if len(names) != len(want) {
		t.Fatalf("unexpected names %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("unexpected names %v", names)
		}
	}

	params, err := svc.Params(context.Background(), "bad-gateway")
	if err != nil {
		t.Fatalf("Params: %v", err)
	}
	if domain.Value(params.ErrorCode) != "502" || domain.Value(params.ErrorSource) != domain.ErrorSourceHost {
		t.Fatalf("unexpected params %+v", params)
	}

	if _, err := svc.Page(context.Background(), ExamplePageCommand{Name: "bad-gateway", Live: LiveRequest{RemoteAddr: "192.0.2.5"}}); err != nil {
		t.Fatalf("Page: %v", err)
	}
	if !renderer.opts.AllowHTML {
		t.Fatalf("bundled examples render trusted markup")
	}
	if domain.Value(renderer.params.ClientIP) != "192.0.2.5" {
		t.Fatalf("expected live client ip, got %q", domain.Value(renderer.params.ClientIP))
	}
}

func TestExampleServiceUnknownName(t *testing.T) {
	svc, err := NewExampleService(ExampleServiceDeps{
		FS:       fstest.MapFS{"one.yaml": {Data: []byte("title: One\n")}},
		Renderer: &captureRenderer{},
		Resolver: cfmeta.NewResolver(nil),
	})
	if err != nil {
		t.Fatalf("NewExampleService: %v", err)
	}
	if _, err := svc.Params(context.Background(), "two"); !errors.Is(err, ErrExampleNotFound) {
		t.Fatalf("expected ErrExampleNotFound, got %v", err)
	}
	if _, err := svc.Page(context.Background(), ExamplePageCommand{Name: "two"}); !errors.Is(err, ErrExampleNotFound) {
		t.Fatalf("expected ErrExampleNotFound, got %v", err)
	}
}

func TestExampleServiceRejectsMalformedExample(t *testing.T) {
	_, err := NewExampleService(ExampleServiceDeps{
		FS:       fstest.MapFS{"broken.yaml": {Data: []byte("error_source: dns\n")}},
		Renderer: &captureRenderer{},
		Resolver: cfmeta.NewResolver(nil),
	})
	if err == nil {
		t.Fatal("expected construction to fail on an invalid example")
	}
}
