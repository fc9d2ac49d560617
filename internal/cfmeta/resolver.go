package cfmeta

import (
	"github.com/cf-error-page/editor/internal/domain"
)

const rayIDLength = 16

// Locator resolves a data-center code to a city.
type Locator interface {
	Lookup(code string) (string, bool)
}

// Resolver injects live edge metadata into parameters.
type Resolver struct {
	locations Locator
}

// NewResolver builds a Resolver. A nil locator resolves no locations.
func NewResolver(locations Locator) *Resolver {
	return &Resolver{locations: locations}
}

// Resolve returns a copy of params with live metadata applied. rayHeader is the raw Cf-Ray
// header value; the ray id is its first 16 characters and the data-center code its last
// three. A caller-declared location is never overwritten. client_ip is always replaced
// with remoteAddr.
func (r *Resolver) Resolve(params domain.ErrorPageParams, rayHeader, remoteAddr string) domain.ErrorPageParams {
	out := params.Clone()

	if rayHeader != "" {
		out.RayID = domain.String(truncate(rayHeader, rayIDLength))

		if out.CloudflareStatus == nil {
			out.CloudflareStatus = &domain.StatusItem{}
		}
		if domain.Value(out.CloudflareStatus.Location) == "" && r.locations != nil {
			if city, ok := r.locations.Lookup(suffix(rayHeader, 3)); ok {
				out.CloudflareStatus.Location = domain.String(city)
			}
		}
	}

	out.ClientIP = domain.String(remoteAddr)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func suffix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
