package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Metrics holds the counters emitted by the share and render paths. A zero Metrics is
// usable and records nothing.
type Metrics struct {
	sharesCreated metric.Int64Counter
	sharesFailed  metric.Int64Counter
	sharesFetched metric.Int64Counter
	pagesRendered metric.Int64Counter
}

// NewMetrics registers counters on meter, or on the global provider when meter is nil.
// Registration failures are logged and leave the affected counter disabled.
func NewMetrics(meter metric.Meter, logger *zap.Logger) *Metrics {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	register := func(name, description string) metric.Int64Counter {
		counter, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			logger.Warn("observability: unable to register metric", zap.String("metric", name), zap.Error(err))
			return nil
		}
		return counter
	}

	return &Metrics{
		sharesCreated: register("share.created", "Share items persisted"),
		sharesFailed:  register("share.create_failed", "Share creations that failed after all attempts"),
		sharesFetched: register("share.fetched", "Share lookups by outcome"),
		pagesRendered: register("page.rendered", "Error pages rendered by source"),
	}
}

// ShareCreated counts a persisted share along with the number of attempts it took.
func (m *Metrics) ShareCreated(ctx context.Context, attempts int) {
	if m == nil || m.sharesCreated == nil {
		return
	}
	m.sharesCreated.Add(ctx, 1, metric.WithAttributes(attribute.Int("attempts", attempts)))
}

// ShareFailed counts a share creation that gave up.
func (m *Metrics) ShareFailed(ctx context.Context, reason string) {
	if m == nil || m.sharesFailed == nil {
		return
	}
	m.sharesFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// ShareFetched counts a share lookup.
func (m *Metrics) ShareFetched(ctx context.Context, found bool) {
	if m == nil || m.sharesFetched == nil {
		return
	}
	m.sharesFetched.Add(ctx, 1, metric.WithAttributes(attribute.Bool("found", found)))
}

// PageRendered counts a rendered HTML page.
func (m *Metrics) PageRendered(ctx context.Context, source string) {
	if m == nil || m.pagesRendered == nil {
		return
	}
	m.pagesRendered.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
}
