package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/cf-error-page/editor/internal/domain"
	"github.com/cf-error-page/editor/internal/platform/requestctx"
	"github.com/cf-error-page/editor/internal/services"
)

const (
	defaultMaxBodyBytes = 4096
	csrfFailedMessage   = "CSRF check failed (Sec-Fetch-Site)"
)

var (
	errBodyTooLarge      = errors.New("request body too large")
	errEmptyBody         = errors.New("request body is required")
	errMissingParameters = errors.New("parameters are required")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	return data, nil
}

// crossSiteRequest reports a browser-declared request from another origin. Clients that do
// not send Sec-Fetch-Site are let through.
func crossSiteRequest(r *http.Request) bool {
	values, ok := r.Header["Sec-Fetch-Site"]
	if !ok || len(values) == 0 {
		return false
	}
	return values[0] != "same-origin"
}

func isJSONContent(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

type parametersRequest struct {
	Parameters json.RawMessage `json:"parameters"`
}

// decodeParametersRequest extracts the "parameters" object of a create or preview body.
func decodeParametersRequest(data []byte) (domain.ErrorPageParams, error) {
	var payload parametersRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		return domain.ErrorPageParams{}, err
	}
	raw := strings.TrimSpace(string(payload.Parameters))
	if raw == "" || raw == "null" {
		return domain.ErrorPageParams{}, errMissingParameters
	}
	return domain.DecodeParams(payload.Parameters)
}

func liveRequest(r *http.Request) services.LiveRequest {
	edge, _ := requestctx.Edge(r.Context())
	return services.LiveRequest{RayHeader: edge.RayHeader, RemoteAddr: edge.RemoteAddr}
}

// hostURL returns scheme://host for the request. X-Forwarded-Proto is honoured only when
// trustProxy is set.
func hostURL(r *http.Request, trustProxy bool) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if trustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			proto, _, _ = strings.Cut(proto, ",")
			switch p := strings.ToLower(strings.TrimSpace(proto)); p {
			case "http", "https":
				scheme = p
			}
		}
	}
	return scheme + "://" + r.Host
}

func requestURL(r *http.Request, trustProxy bool) string {
	return hostURL(r, trustProxy) + r.URL.RequestURI()
}

func writeHTML(w http.ResponseWriter, status int, page string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, page)
}
