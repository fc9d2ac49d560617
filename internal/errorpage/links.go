package errorpage

import (
	"strings"

	"github.com/cf-error-page/editor/internal/domain"
)

// SanitizeLink turns a user-entered link into an absolute http(s) URL or an in-page anchor.
// Bare domains and paths get https://, anything else is treated as an element id.
func SanitizeLink(raw string) string {
	link := strings.TrimSpace(raw)
	if strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	if strings.ContainsAny(link, "./") {
		return "https://" + link
	}
	return "#" + link
}

// SanitizeLinks returns a copy of params with the more-information and perf-sec-by links
// sanitized. Absent or empty links are left as they are.
func SanitizeLinks(params domain.ErrorPageParams) domain.ErrorPageParams {
	out := params.Clone()
	if mi := out.MoreInformation; mi != nil && domain.Value(mi.Link) != "" {
		mi.Link = domain.String(SanitizeLink(*mi.Link))
	}
	if ps := out.PerfSecBy; ps != nil && domain.Value(ps.Link) != "" {
		ps.Link = domain.String(SanitizeLink(*ps.Link))
	}
	return out
}
