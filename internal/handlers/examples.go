package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cf-error-page/editor/internal/platform/httpx"
	"github.com/cf-error-page/editor/internal/platform/requestctx"
	"github.com/cf-error-page/editor/internal/services"
)

// ExampleHandlers serves the bundled example pages.
type ExampleHandlers struct {
	examples   services.ExampleService
	trustProxy bool
}

// NewExampleHandlers constructs example handlers.
func NewExampleHandlers(examples services.ExampleService, trustProxy bool) *ExampleHandlers {
	return &ExampleHandlers{examples: examples, trustProxy: trustProxy}
}

type exampleListResponse struct {
	Status   string   `json:"status"`
	Examples []string `json:"examples"`
}

// List handles GET .../examples/.
func (h *ExampleHandlers) List(w http.ResponseWriter, r *http.Request) {
	names := h.examples.List(r.Context())
	if names == nil {
		names = []string{}
	}
	httpx.WriteJSON(w, http.StatusOK, exampleListResponse{Status: httpx.StatusOK, Examples: names})
}

// Get handles GET .../examples/{name}.
func (h *ExampleHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	if httpx.WantsJSON(r) {
		params, err := h.examples.Params(ctx, name)
		if errors.Is(err, services.ErrExampleNotFound) {
			httpx.WriteJSON(w, http.StatusOK, httpx.StatusResponse{Status: httpx.StatusNotFound})
			return
		}
		if err != nil {
			h.writeServerError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.StatusResponse{Status: httpx.StatusOK, Parameters: params})
		return
	}

	page, err := h.examples.Page(ctx, services.ExamplePageCommand{
		Name:    name,
		PageURL: requestURL(r, h.trustProxy),
		Live:    liveRequest(r),
	})
	switch {
	case errors.Is(err, services.ErrExampleNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("example_not_found", "example not found", http.StatusNotFound))
	case err != nil:
		h.writeServerError(w, r, err)
	default:
		writeHTML(w, http.StatusOK, page)
	}
}

func (h *ExampleHandlers) writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	requestctx.Logger(r.Context()).Error("example render failed", zap.Error(err))
	httpx.WriteError(r.Context(), w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
}
