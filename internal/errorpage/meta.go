package errorpage

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/cf-error-page/editor/internal/domain"
)

// DefaultDescription is used for social previews when what_happened is empty.
const DefaultDescription = "There is an internal server error on Cloudflare's network."

const statusPlaceholder = "{status}"

var descriptionPolicy = bluemonday.StrictPolicy()

// PageMeta holds the values that fill the document head: favicon, social preview tags and
// the canonical URL.
type PageMeta struct {
	Title       string
	Description string
	PageURL     string
	IconURL     string
	IconType    string
	ImageURL    string
	SiteName    string
	OG          OpenGraph
	Twitter     Twitter
}

// OpenGraph tags.
type OpenGraph struct {
	Type string
}

// Twitter card tags.
type Twitter struct {
	Card string
}

// Description derives the social preview text from what_happened with all markup removed.
func Description(params domain.ErrorPageParams) string {
	text := domain.Value(params.WhatHappened)
	if text == "" {
		text = DefaultDescription
	}
	return strings.TrimSpace(html.UnescapeString(descriptionPolicy.Sanitize(text)))
}

// OverallStatus is "error" when the Cloudflare column reports an error, otherwise "ok".
func OverallStatus(params domain.ErrorPageParams) string {
	if cf := params.CloudflareStatus; cf != nil && domain.Value(cf.Status) == domain.StatusError {
		return domain.StatusError
	}
	return domain.StatusOK
}

// ExpandStatus substitutes status into every {status} placeholder of tmpl.
func ExpandStatus(tmpl, status string) string {
	return strings.ReplaceAll(tmpl, statusPlaceholder, status)
}
