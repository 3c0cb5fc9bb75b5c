package poloniex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpoliselit/poloniex/errs"
)

func TestPrivateCallWithoutCredentialsSkipsNetwork(t *testing.T) {
	h := newHarness(t)
	h.fx.reply(cmdBalances, http.StatusOK, `{"BTC":"1"}`)

	_, err := h.client.Balances(context.Background())
	require.True(t, errs.IsCode(err, errs.CodeConfiguration), "got %v", err)
	require.Empty(t, h.fx.recorded())
	require.Equal(t, "Unsigned Poloniex API", h.client.String())
}

func TestPrivateRequestIsSignedOverExactBody(t *testing.T) {
	frozen := time.UnixMilli(1_600_000_000_000)
	h := newSignedHarness(t, withClock(func() time.Time { return frozen }))
	h.fx.reply(cmdBalances, http.StatusOK, `{"BTC":"0.5"}`)

	_, err := h.client.Balances(context.Background())
	require.NoError(t, err)

	reqs := h.fx.recorded()
	require.Len(t, reqs, 1)
	req := reqs[0]
	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "/tradingApi", req.Path)
	require.Equal(t, "command=returnBalances&nonce=1600000000000", req.Body)
	require.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
	require.Equal(t, "api-key", req.Header.Get("Key"))

	want, err := Sign([]byte("secret"), req.Body)
	require.NoError(t, err)
	require.Equal(t, want, req.Header.Get("Sign"))
	require.Equal(t, "Signed Poloniex API", h.client.String())
}

func TestSecretIsUsedVerbatim(t *testing.T) {
	h := newHarness(t, WithCredentials(" api-key ", " secret\n"))
	h.fx.reply(cmdBalances, http.StatusOK, `{"BTC":"0.5"}`)

	_, err := h.client.Balances(context.Background())
	require.NoError(t, err)

	req := h.fx.recorded()[0]
	require.Equal(t, "api-key", req.Header.Get("Key"))
	want, err := Sign([]byte(" secret\n"), req.Body)
	require.NoError(t, err)
	require.Equal(t, want, req.Header.Get("Sign"))
	trimmed, err := Sign([]byte("secret"), req.Body)
	require.NoError(t, err)
	require.NotEqual(t, trimmed, req.Header.Get("Sign"))
}

func TestConsecutivePrivateCallsUseFreshNoncesAndSignatures(t *testing.T) {
	frozen := time.UnixMilli(1_600_000_000_000)
	h := newSignedHarness(t, withClock(func() time.Time { return frozen }))
	h.fx.reply(cmdBalances, http.StatusOK, `{"BTC":"0.5"}`)

	for i := 0; i < 2; i++ {
		_, err := h.client.Balances(context.Background())
		require.NoError(t, err)
	}
	reqs := h.fx.recorded()
	require.Len(t, reqs, 2)

	first, _ := strconv.ParseInt(reqs[0].Params.Get("nonce"), 10, 64)
	second, _ := strconv.ParseInt(reqs[1].Params.Get("nonce"), 10, 64)
	require.Greater(t, second, first)
	require.NotEqual(t, reqs[0].Header.Get("Sign"), reqs[1].Header.Get("Sign"))
}

func TestQueryDoesNotMutateCallerParams(t *testing.T) {
	h := newSignedHarness(t)
	h.fx.reply(cmdOpenOrders, http.StatusOK, `[]`)

	params := url.Values{"command": {cmdOpenOrders}, "currencyPair": {"BTC_LTC"}}
	_, err := h.client.Query(context.Background(), true, params)
	require.NoError(t, err)
	require.Equal(t, url.Values{"command": {cmdOpenOrders}, "currencyPair": {"BTC_LTC"}}, params)
	require.NotEmpty(t, h.fx.recorded()[0].Params.Get("nonce"))
}

func TestPublicRequestIsGetWithQuery(t *testing.T) {
	h := newHarness(t)
	h.fx.reply(cmdOrderBook, http.StatusOK, `{"asks":[],"bids":[],"isFrozen":"0","seq":1}`)

	_, err := h.client.OrderBook(context.Background(), "BTC_LTC", 10)
	require.NoError(t, err)

	req := h.fx.recorded()[0]
	require.Equal(t, http.MethodGet, req.Method)
	require.Equal(t, "/public", req.Path)
	require.Equal(t, "BTC_LTC", req.Params.Get("currencyPair"))
	require.Equal(t, "10", req.Params.Get("depth"))
	require.Empty(t, req.Header.Get("Sign"))
}

func TestRemoteErrorEnvelopeBecomesExchangeError(t *testing.T) {
	h := newSignedHarness(t)
	h.fx.reply(cmdBalances, http.StatusOK, `{"error":"Nonce must be greater than 1600000000000."}`)

	_, err := h.client.Balances(context.Background())
	require.True(t, errs.IsCode(err, errs.CodeExchange), "got %v", err)

	var envelope *errs.E
	require.ErrorAs(t, err, &envelope)
	require.Equal(t, "Nonce must be greater than 1600000000000.", envelope.RawMsg)
	require.Equal(t, cmdBalances, envelope.Fields["command"])
}

func TestTransportPanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	h.fx.reply(cmdTicker, http.StatusBadGateway, ``)
	h.client.transport.sleep = func(context.Context, time.Duration) error {
		panic("sleeper exploded")
	}

	_, err := h.client.Query(context.Background(), false, command(cmdTicker))
	require.True(t, errs.IsCode(err, errs.CodeNetwork), "got %v", err)
	require.Contains(t, err.Error(), "sleeper exploded")
}
