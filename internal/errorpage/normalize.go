// Package errorpage turns error page parameters into a finished HTML document.
package errorpage

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/cf-error-page/editor/internal/domain"
)

// TimeLayout is the format of the page timestamp.
const TimeLayout = "2006-01-02 15:04:05 UTC"

const rayIDBytes = 8

// Normalizer fills render-time defaults into parameters.
type Normalizer struct {
	now    func() time.Time
	random io.Reader
}

// NormalizerOption customises a Normalizer.
type NormalizerOption func(*Normalizer)

// WithClock overrides the clock used for the default timestamp.
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithRandom overrides the entropy source used for generated ray ids.
func WithRandom(r io.Reader) NormalizerOption {
	return func(n *Normalizer) {
		if r != nil {
			n.random = r
		}
	}
}

// NewNormalizer returns a Normalizer backed by the system clock and crypto/rand.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		now:    time.Now,
		random: rand.Reader,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns a copy of params ready for rendering:
//   - more_information.for takes the value of for_text whenever for_text is set;
//   - an empty time becomes the current UTC timestamp;
//   - an empty ray id becomes 16 random lowercase hex characters;
//   - unless allowHTML, what_happened and what_can_i_do are HTML-escaped and always present.
func (n *Normalizer) Normalize(params domain.ErrorPageParams, allowHTML bool) (domain.ErrorPageParams, error) {
	out := params.Clone()

	if mi := out.MoreInformation; mi != nil && mi.ForText != nil {
		mi.For = domain.String(*mi.ForText)
	}

	if domain.Value(out.Time) == "" {
		out.Time = domain.String(n.now().UTC().Format(TimeLayout))
	}

	if domain.Value(out.RayID) == "" {
		buf := make([]byte, rayIDBytes)
		if _, err := io.ReadFull(n.random, buf); err != nil {
			return domain.ErrorPageParams{}, fmt.Errorf("errorpage: generate ray id: %w", err)
		}
		out.RayID = domain.String(hex.EncodeToString(buf))
	}

	if !allowHTML {
		out.WhatHappened = domain.String(html.EscapeString(domain.Value(out.WhatHappened)))
		out.WhatCanIDo = domain.String(html.EscapeString(domain.Value(out.WhatCanIDo)))
	}

	return out, nil
}
