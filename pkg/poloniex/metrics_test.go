package poloniex

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/rpoliselit/poloniex/internal/telemetry"
)

func counterTotal(t *testing.T, reader sdkmetric.Reader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is %T", name, m.Data)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestWithMeterRecordsOnGivenMeter(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	h := newSignedHarness(t, WithMeter(provider.Meter(MeterName)))
	h.fx.reply(cmdTicker, http.StatusOK, `{"BTC_LTC":{"last":"0.01"}}`)
	h.fx.reply(cmdBalances, http.StatusOK, `{"error":"Invalid API key/secret pair."}`)
	h.fx.reply(cmdOrderBook, http.StatusOK, `{"asks":[[10,2]],"bids":[]}`)
	h.fx.reply(cmdBuy, http.StatusOK, `{"orderNumber":"1"}`)

	_, err := h.client.Ticker(context.Background())
	require.NoError(t, err)
	_, err = h.client.Balances(context.Background())
	require.Error(t, err)
	_, err = h.client.MarketBuy(context.Background(), "BTC_LTC", 1)
	require.NoError(t, err)

	require.Equal(t, int64(4), counterTotal(t, reader, telemetry.MetricRequests))
	require.Equal(t, int64(1), counterTotal(t, reader, telemetry.MetricRemoteErrors))
	require.Equal(t, int64(1), counterTotal(t, reader, telemetry.MetricMarketWalkOrders))
}
