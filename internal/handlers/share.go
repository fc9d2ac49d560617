package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cf-error-page/editor/internal/platform/httpx"
	"github.com/cf-error-page/editor/internal/platform/requestctx"
	"github.com/cf-error-page/editor/internal/services"
)

// ShareHandlers serves share creation and playback.
type ShareHandlers struct {
	shares       services.ShareService
	prefix       string
	shortURL     bool
	trustProxy   bool
	maxBodyBytes int64
}

// ShareOption customises ShareHandlers.
type ShareOption func(*ShareHandlers)

// WithSharePrefix sets the URL prefix every route lives under.
func WithSharePrefix(prefix string) ShareOption {
	return func(h *ShareHandlers) {
		h.prefix = strings.TrimRight(prefix, "/")
	}
}

// WithShortShareURL makes /<name> the canonical share location.
func WithShortShareURL(enabled bool) ShareOption {
	return func(h *ShareHandlers) {
		h.shortURL = enabled
	}
}

// WithShareTrustProxy honours X-Forwarded-Proto when building absolute URLs.
func WithShareTrustProxy(enabled bool) ShareOption {
	return func(h *ShareHandlers) {
		h.trustProxy = enabled
	}
}

// WithShareMaxBody overrides the create request body limit.
func WithShareMaxBody(limit int64) ShareOption {
	return func(h *ShareHandlers) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// NewShareHandlers constructs share handlers.
func NewShareHandlers(shares services.ShareService, opts ...ShareOption) *ShareHandlers {
	h := &ShareHandlers{
		shares:       shares,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Create handles POST .../create.
func (h *ShareHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	data, err := readLimitedBody(r, h.maxBodyBytes)
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteFailure(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	case err != nil && !errors.Is(err, errEmptyBody):
		httpx.WriteFailure(w, http.StatusBadRequest, "unable to read request body")
		return
	}

	if crossSiteRequest(r) {
		httpx.WriteFailure(w, http.StatusForbidden, csrfFailedMessage)
		return
	}
	if !isJSONContent(r) {
		httpx.WriteFailure(w, http.StatusUnsupportedMediaType, "content type must be application/json")
		return
	}

	params, err := decodeParametersRequest(data)
	if err != nil {
		logger.Debug("share create rejected", zap.Error(err))
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.StatusResponse{Status: httpx.StatusFailed})
		return
	}

	item, err := h.shares.Create(ctx, params)
	if err != nil {
		if errors.Is(err, services.ErrInvalidParams) {
			httpx.WriteJSON(w, http.StatusBadRequest, httpx.StatusResponse{Status: httpx.StatusFailed})
			return
		}
		logger.Error("share create failed", zap.Error(err))
		httpx.WriteJSON(w, http.StatusOK, httpx.StatusResponse{Status: httpx.StatusFailed})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, httpx.StatusResponse{
		Status: httpx.StatusOK,
		Name:   item.Name,
		URL:    hostURL(r, h.trustProxy) + h.sharePath(item.Name),
	})
}

// Get handles GET .../{name}, answering JSON or HTML by the Accept header.
func (h *ShareHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	if httpx.WantsJSON(r) {
		params, err := h.shares.Fetch(ctx, name)
		switch {
		case errors.Is(err, services.ErrShareNotFound):
			httpx.WriteJSON(w, http.StatusOK, httpx.StatusResponse{Status: httpx.StatusNotFound})
		case err != nil:
			h.writeServerError(w, r, err)
		default:
			httpx.WriteJSON(w, http.StatusOK, httpx.StatusResponse{Status: httpx.StatusOK, Parameters: params})
		}
		return
	}

	page, err := h.shares.Page(ctx, services.SharePageCommand{
		Name:      name,
		EditorURL: hostURL(r, h.trustProxy) + h.prefix + "/editor/",
		PageURL:   requestURL(r, h.trustProxy),
		Live:      liveRequest(r),
	})
	switch {
	case errors.Is(err, services.ErrShareNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("share_not_found", "share not found", http.StatusNotFound))
	case err != nil:
		h.writeServerError(w, r, err)
	default:
		writeHTML(w, http.StatusOK, page)
	}
}

// GetLong handles GET .../s/{name}. With short URLs enabled it redirects to the canonical
// location one level up.
func (h *ShareHandlers) GetLong(w http.ResponseWriter, r *http.Request) {
	if !h.shortURL {
		h.Get(w, r)
		return
	}
	name := chi.URLParam(r, "name")
	w.Header().Set("Location", "../"+url.PathEscape(name))
	w.WriteHeader(http.StatusPermanentRedirect)
}

func (h *ShareHandlers) sharePath(name string) string {
	if h.shortURL {
		return h.prefix + "/" + url.PathEscape(name)
	}
	return h.prefix + "/s/" + url.PathEscape(name)
}

func (h *ShareHandlers) writeServerError(w http.ResponseWriter, r *http.Request, err error) {
	requestctx.Logger(r.Context()).Error("share lookup failed", zap.Error(err))
	httpx.WriteError(r.Context(), w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
}

