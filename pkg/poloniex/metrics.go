package poloniex

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/rpoliselit/poloniex/internal/telemetry"
)

// MeterName names the meter a Client records on when none is given.
const MeterName = "poloniex.client"

type clientMetrics struct {
	environment string

	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	cooldowns       metric.Int64Counter
	remoteErrors    metric.Int64Counter
	walkOrders      metric.Int64Counter
	walkDuration    metric.Float64Histogram
}

func newClientMetrics(meter metric.Meter) *clientMetrics {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}
	m := &clientMetrics{environment: telemetry.Environment()}

	m.requests, _ = meter.Int64Counter(telemetry.MetricRequests,
		metric.WithDescription("Poloniex HTTP requests by command and status class"),
		metric.WithUnit("{request}"))

	m.requestDuration, _ = meter.Float64Histogram(telemetry.MetricRequestDuration,
		metric.WithDescription("Poloniex HTTP round-trip duration"),
		metric.WithUnit("ms"))

	m.cooldowns, _ = meter.Int64Counter(telemetry.MetricCooldowns,
		metric.WithDescription("Cooldown sleeps triggered by maintenance or gateway statuses"),
		metric.WithUnit("{cooldown}"))

	m.remoteErrors, _ = meter.Int64Counter(telemetry.MetricRemoteErrors,
		metric.WithDescription("Replies carrying an error envelope"),
		metric.WithUnit("{error}"))

	m.walkOrders, _ = meter.Int64Counter(telemetry.MetricMarketWalkOrders,
		metric.WithDescription("Immediate-or-cancel orders placed by market walkers"),
		metric.WithUnit("{order}"))

	m.walkDuration, _ = meter.Float64Histogram(telemetry.MetricMarketWalkDuration,
		metric.WithDescription("Market walk duration"),
		metric.WithUnit("ms"))

	return m
}

func visibility(private bool) string {
	if private {
		return telemetry.VisibilityPrivate
	}
	return telemetry.VisibilityPublic
}

func (m *clientMetrics) recordRequest(ctx context.Context, command string, private bool, class string, elapsed time.Duration) {
	if m == nil {
		return
	}
	ctx = ensureContext(ctx)
	attrs := metric.WithAttributes(telemetry.RequestAttributes(m.environment, command, visibility(private), class)...)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.requestDuration != nil {
		m.requestDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

func (m *clientMetrics) recordCooldown(ctx context.Context, command, class string) {
	if m == nil || m.cooldowns == nil {
		return
	}
	m.cooldowns.Add(ensureContext(ctx), 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(m.environment),
		telemetry.AttrCommand.String(command),
		telemetry.AttrStatusClass.String(class),
	))
}

func (m *clientMetrics) recordRemoteError(ctx context.Context, command string) {
	if m == nil || m.remoteErrors == nil {
		return
	}
	m.remoteErrors.Add(ensureContext(ctx), 1, metric.WithAttributes(
		telemetry.AttrEnvironment.String(m.environment),
		telemetry.AttrCommand.String(command),
	))
}

func (m *clientMetrics) recordWalk(ctx context.Context, side string, orders int, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	ctx = ensureContext(ctx)
	result := telemetry.ResultOK
	if err != nil {
		result = telemetry.ResultError
	}
	attrs := metric.WithAttributes(telemetry.MarketWalkAttributes(m.environment, side, result)...)
	if m.walkOrders != nil {
		m.walkOrders.Add(ctx, int64(orders), attrs)
	}
	if m.walkDuration != nil {
		m.walkDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
