package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cf-error-page/editor/internal/cfmeta"
	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/errorpage"
	"github.com/cf-error-page/editor/internal/examples"
	"github.com/cf-error-page/editor/internal/platform/observability"
	"github.com/cf-error-page/editor/internal/repositories"
	"github.com/cf-error-page/editor/internal/repositories/memory"
	"github.com/cf-error-page/editor/internal/services"
	"github.com/cf-error-page/editor/internal/testutil"
)

type stubLocator map[string]string

func (s stubLocator) Lookup(code string) (string, bool) {
	city, ok := s[code]
	return city, ok
}

type failingItemRepository struct{}

func (failingItemRepository) Insert(context.Context, domain.Item) error {
	return repositories.NewUnavailableError("failing.insert", errors.New("disk full"))
}

func (failingItemRepository) FindByName(context.Context, string) (domain.Item, error) {
	return domain.Item{}, repositories.NewUnavailableError("failing.find", errors.New("disk full"))
}

func (failingItemRepository) Ping(context.Context) error { return errors.New("disk full") }
func (failingItemRepository) Close() error               { return nil }

type testServer struct {
	router http.Handler
	items  *memory.ItemRepository
}

type serverOptions struct {
	prefix    string
	shortURL  bool
	repo      repositories.ItemRepository
	perMinute int
	editorFS  fstest.MapFS
}

func newTestServer(t *testing.T, opts serverOptions) testServer {
	t.Helper()

	items := memory.NewItemRepository()
	var repo repositories.ItemRepository = items
	if opts.repo != nil {
		repo = opts.repo
	}

	renderer := errorpage.NewRenderer(errorpage.Config{SiteName: "moe::virt"}, errorpage.NewNormalizer(
		errorpage.WithClock(func() time.Time { return time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC) }),
	))
	resolver := cfmeta.NewResolver(stubLocator{"NRT": "Tokyo"})

	shareSvc, err := services.NewShareService(services.ShareServiceDeps{Items: repo, Renderer: renderer, Resolver: resolver})
	require.NoError(t, err)
	previewSvc, err := services.NewPreviewService(services.PreviewServiceDeps{Renderer: renderer, Resolver: resolver})
	require.NoError(t, err)
	exampleSvc, err := services.NewExampleService(services.ExampleServiceDeps{FS: examples.FS, Dir: examples.Dir, Renderer: renderer, Resolver: resolver})
	require.NoError(t, err)

	editorFS := opts.editorFS
	if editorFS == nil {
		editorFS = fstest.MapFS{"index.html": {Data: []byte("<html>editor</html>")}}
	}

	router := NewRouter(
		WithMiddlewares(observability.EdgeMiddleware),
		WithURLPrefix(opts.prefix),
		WithShortShareURLs(opts.shortURL),
		WithShareHandlers(NewShareHandlers(shareSvc, WithSharePrefix(opts.prefix), WithShortShareURL(opts.shortURL))),
		WithPreviewHandlers(NewPreviewHandlers(previewSvc, false, 0)),
		WithExampleHandlers(NewExampleHandlers(exampleSvc, false)),
		WithEditorHandlers(NewEditorHandlersFS(editorFS, opts.prefix)),
		WithCreateRateLimit(opts.perMinute, 0, nil),
	)
	return testServer{router: router, items: items}
}

func (s testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func createRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "203.0.113.9:40000"
	return req
}

func decodeStatus(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body
}

func TestShareCreateAndPlayback(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rr := srv.do(createRequest("/s/create", `{"parameters":{"title":"Bad gateway","error_code":"502","ray_id":"feedface","more_information":{"link":"example.com/help"}}}`))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeStatus(t, rr)
	require.Equal(t, "ok", body["status"])
	name, _ := body["name"].(string)
	require.Len(t, name, 7)
	require.Equal(t, "http://example.com/s/"+name, body["url"])
	require.Equal(t, 1, srv.items.Len())

	jsonReq := httptest.NewRequest(http.MethodGet, "/s/"+name, nil)
	jsonReq.Header.Set("Accept", "application/json")
	rr = srv.do(jsonReq)
	require.Equal(t, http.StatusOK, rr.Code)
	var fetched struct {
		Status     string         `json:"status"`
		Parameters map[string]any `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fetched))
	require.Equal(t, "ok", fetched.Status)
	require.Equal(t, "Bad gateway", fetched.Parameters["title"])
	require.NotContains(t, fetched.Parameters, "ray_id")
	require.NotContains(t, fetched.Parameters, "creator_info")
	require.Equal(t, "example.com/help", fetched.Parameters["more_information"].(map[string]any)["link"])

	htmlReq := httptest.NewRequest(http.MethodGet, "/s/"+name, nil)
	htmlReq.Header.Set("Cf-Ray", "8f1c2d3e4f5a6b7c-NRT")
	htmlReq.RemoteAddr = "198.51.100.23:5555"
	rr = srv.do(htmlReq)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Header().Get("Content-Type"), "text/html")

	doc := testutil.ParseHTML(t, rr.Body.Bytes())
	require.Contains(t, doc.Find("h1").Text(), "Bad gateway")
	require.Equal(t, "8f1c2d3e4f5a6b7c", doc.Find("#ray-id strong").Text())
	require.Equal(t, "198.51.100.23", doc.Find("#client-ip .hidden").Text())
	require.Equal(t, "Tokyo", doc.Find("#cloudflare-status .location").Text())
	link, _ := doc.Find("#creator-info a").Attr("href")
	require.Equal(t, "http://example.com/editor/#from="+name, link)
	require.Equal(t, "CF Error Page Editor", doc.Find("#creator-info a").Text())
	moreLink, _ := doc.Find("#more-information a").Attr("href")
	require.Equal(t, "https://example.com/help", moreLink)
}

func TestShareCreateRejections(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	large := `{"parameters":{"title":"` + strings.Repeat("x", 5000) + `"}}`
	rr := srv.do(createRequest("/s/create", large))
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	req := createRequest("/s/create", `{"parameters":{}}`)
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	rr = srv.do(req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	body := decodeStatus(t, rr)
	require.Equal(t, "failed", body["status"])
	require.Equal(t, "CSRF check failed (Sec-Fetch-Site)", body["message"])

	req = createRequest("/s/create", `{"parameters":{}}`)
	req.Header.Set("Content-Type", "text/plain")
	rr = srv.do(req)
	require.Equal(t, http.StatusUnsupportedMediaType, rr.Code)

	rr = srv.do(createRequest("/s/create", `{"params":{}}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "failed", decodeStatus(t, rr)["status"])

	rr = srv.do(createRequest("/s/create", `{"parameters":{"error_source":"dns"}}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	require.Equal(t, 0, srv.items.Len())

	req = createRequest("/create", `{"parameters":{}}`)
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	rr = srv.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", decodeStatus(t, rr)["status"])
}

func TestShareCreatePersistenceFailure(t *testing.T) {
	srv := newTestServer(t, serverOptions{repo: failingItemRepository{}})

	rr := srv.do(createRequest("/s/create", `{"parameters":{"title":"x"}}`))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeStatus(t, rr)
	require.Equal(t, map[string]any{"status": "failed"}, body)
}

func TestShareGetNotFound(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	req := httptest.NewRequest(http.MethodGet, "/s/missing", nil)
	req.Header.Set("Accept", "application/json, text/plain")
	rr := srv.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, map[string]any{"status": "notfound"}, decodeStatus(t, rr))

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/s/missing", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestShortShareURLs(t *testing.T) {
	srv := newTestServer(t, serverOptions{prefix: "/cf", shortURL: true})

	rr := srv.do(createRequest("/cf/s/create", `{"parameters":{"title":"Short"}}`))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeStatus(t, rr)
	name := body["name"].(string)
	require.Equal(t, "http://example.com/cf/"+name, body["url"])

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/cf/s/"+name, nil))
	require.Equal(t, http.StatusPermanentRedirect, rr.Code)
	require.Equal(t, "../"+name, rr.Header().Get("Location"))

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/cf/"+name, nil))
	require.Equal(t, http.StatusOK, rr.Code)
	doc := testutil.ParseHTML(t, rr.Body.Bytes())
	link, _ := doc.Find("#creator-info a").Attr("href")
	require.Equal(t, "http://example.com/cf/editor/#from="+name, link)

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/cf/editor/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "editor")
}

func TestShareCreateRateLimited(t *testing.T) {
	srv := newTestServer(t, serverOptions{perMinute: 2})

	for i := 0; i < 2; i++ {
		rr := srv.do(createRequest("/s/create", `{"parameters":{}}`))
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr := srv.do(createRequest("/s/create", `{"parameters":{}}`))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "failed", decodeStatus(t, rr)["status"])

	other := createRequest("/s/create", `{"parameters":{}}`)
	other.RemoteAddr = "192.0.2.44:1000"
	rr = srv.do(other)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestPreviewEscapesUserMarkup(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rr := srv.do(createRequest("/editor/preview", `{"parameters":{"title":"Draft","what_happened":"<script>alert(1)</script>"}}`))
	require.Equal(t, http.StatusOK, rr.Code)
	doc := testutil.ParseHTML(t, rr.Body.Bytes())
	require.Equal(t, 0, doc.Find("#what-happened script").Length())
	require.Equal(t, "<script>alert(1)</script>", doc.Find("#what-happened p").Text())
	require.Equal(t, "203.0.113.9", doc.Find("#client-ip .hidden").Text())

	req := createRequest("/editor/preview", `{"parameters":{"title":"Draft"}}`)
	req.Header.Set("Accept", "application/json")
	rr = srv.do(req)
	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Status     string         `json:"status"`
		Parameters map[string]any `json:"parameters"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body.Status)
	require.Equal(t, "203.0.113.9", body.Parameters["client_ip"])
	require.Equal(t, 0, srv.items.Len())
}

func TestExamplesEndpoints(t *testing.T) {
	srv := newTestServer(t, serverOptions{})

	rr := srv.do(httptest.NewRequest(http.MethodGet, "/examples/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list struct {
		Examples []string `json:"examples"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Contains(t, list.Examples, "bad-gateway")

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/examples/web-server-down", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	doc := testutil.ParseHTML(t, rr.Body.Bytes())
	require.Equal(t, 2, doc.Find("#what-can-i-do h3").Length())

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/examples/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRootRedirectAndHealth(t *testing.T) {
	srv := newTestServer(t, serverOptions{prefix: "/cf"})

	rr := srv.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusFound, rr.Code)
	require.Equal(t, "/cf/editor/", rr.Header().Get("Location"))

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Empty(t, rr.Body.String())

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/cf/editor/missing.js", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/nowhere/at/all", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Contains(t, rr.Body.String(), "route_not_found")
}

func TestEditorStaticCaching(t *testing.T) {
	srv := newTestServer(t, serverOptions{editorFS: fstest.MapFS{
		"index.html":    {Data: []byte("<html>editor</html>")},
		"assets/app.js": {Data: []byte("console.log('editor')")},
	}})

	rr := srv.do(httptest.NewRequest(http.MethodGet, "/editor/assets/app.js", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, assetCacheControl, rr.Header().Get("Cache-Control"))
	etag := rr.Header().Get("ETag")
	require.NotEmpty(t, etag)

	req := httptest.NewRequest(http.MethodGet, "/editor/assets/app.js", nil)
	req.Header.Set("If-None-Match", etag)
	rr = srv.do(req)
	require.Equal(t, http.StatusNotModified, rr.Code)

	rr = srv.do(httptest.NewRequest(http.MethodGet, "/editor/", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "no-cache", rr.Header().Get("Cache-Control"))
}
