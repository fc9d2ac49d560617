package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/cf-error-page/editor/internal/platform/httpx"
	"github.com/cf-error-page/editor/internal/platform/requestctx"
	"github.com/cf-error-page/editor/internal/services"
)

// PreviewHandlers renders unsaved editor drafts.
type PreviewHandlers struct {
	previews     services.PreviewService
	trustProxy   bool
	maxBodyBytes int64
}

// NewPreviewHandlers constructs preview handlers. maxBodyBytes <= 0 selects the default.
func NewPreviewHandlers(previews services.PreviewService, trustProxy bool, maxBodyBytes int64) *PreviewHandlers {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &PreviewHandlers{previews: previews, trustProxy: trustProxy, maxBodyBytes: maxBodyBytes}
}

// Preview handles POST .../editor/preview.
func (h *PreviewHandlers) Preview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

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
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.StatusResponse{Status: httpx.StatusFailed})
		return
	}

	cmd := services.PreviewCommand{Params: params, PageURL: requestURL(r, h.trustProxy), Live: liveRequest(r)}

	if httpx.WantsJSON(r) {
		resolved, err := h.previews.Resolve(ctx, cmd)
		if err != nil {
			h.writeFailure(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, httpx.StatusResponse{Status: httpx.StatusOK, Parameters: resolved})
		return
	}

	page, err := h.previews.Render(ctx, cmd)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeHTML(w, http.StatusOK, page)
}

func (h *PreviewHandlers) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrInvalidParams) {
		httpx.WriteJSON(w, http.StatusBadRequest, httpx.StatusResponse{Status: httpx.StatusFailed})
		return
	}
	requestctx.Logger(r.Context()).Error("preview render failed", zap.Error(err))
	httpx.WriteError(r.Context(), w, httpx.NewError("internal_server_error", "internal server error", http.StatusInternalServerError))
}
