package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Metric instrument names recorded by the client.
const (
	MetricRequests           = "poloniex.requests"
	MetricRequestDuration    = "poloniex.request.duration"
	MetricCooldowns          = "poloniex.cooldowns"
	MetricRemoteErrors       = "poloniex.remote_errors"
	MetricMarketWalkOrders   = "poloniex.market_walk.orders"
	MetricMarketWalkDuration = "poloniex.market_walk.duration"
	MetricStreamReconnects   = "poloniex.stream.reconnects"
	MetricStreamFrames       = "poloniex.stream.frames"
)

// Attribute keys, following OpenTelemetry naming: namespace.attribute_name
const (
	AttrEnvironment = attribute.Key("environment")
	AttrCommand     = attribute.Key("command")
	AttrVisibility  = attribute.Key("visibility")
	AttrStatusClass = attribute.Key("status.class")
	AttrSide        = attribute.Key("side")
	AttrResult      = attribute.Key("result")
	AttrChannel     = attribute.Key("channel")
)

// Visibility values
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Result values
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// RequestAttributes returns attributes for request metrics.
func RequestAttributes(environment, command, visibility, statusClass string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrCommand.String(command),
		AttrVisibility.String(visibility),
		AttrStatusClass.String(statusClass),
	}
}

// MarketWalkAttributes returns attributes for market walker metrics.
func MarketWalkAttributes(environment, side, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrSide.String(side),
		AttrResult.String(result),
	}
}

// StreamAttributes returns attributes for streaming metrics.
func StreamAttributes(environment, channel string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEnvironment.String(environment),
		AttrChannel.String(channel),
	}
}
