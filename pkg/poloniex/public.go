package poloniex

import (
	"context"
	"net/url"
	"strconv"

	"github.com/rpoliselit/poloniex/errs"
)

const (
	cmdTicker        = "returnTicker"
	cmdVolume24h     = "return24hVolume"
	cmdOrderBook     = "returnOrderBook"
	cmdTradeHistory  = "returnTradeHistory"
	cmdChartData     = "returnChartData"
	cmdCurrencies    = "returnCurrencies"
	cmdLoanOrders    = "returnLoanOrders"
	defaultBookDepth = 50
	allPairs         = "all"
)

// Order book sides accepted by OrderBookSide.
const (
	SideAsks = "asks"
	SideBids = "bids"
)

// command starts a fresh parameter set for one call.
func command(name string) url.Values {
	return url.Values{"command": {name}}
}

func (c *Client) publicObject(ctx context.Context, params url.Values) (map[string]any, error) {
	name := params.Get("command")
	reply, err := c.Query(ctx, false, params)
	if err != nil {
		return nil, err
	}
	return asObject(reply, name, "")
}

// Ticker returns the ticker of every market keyed by currency pair.
func (c *Client) Ticker(ctx context.Context) (map[string]any, error) {
	return c.publicObject(ctx, command(cmdTicker))
}

// PairTicker returns the ticker of one market.
func (c *Client) PairTicker(ctx context.Context, pair string) (map[string]any, error) {
	all, err := c.Ticker(ctx)
	if err != nil {
		return nil, err
	}
	return narrowObject(all, cmdTicker, pair)
}

// TickerValue returns one numeric ticker field such as "last" or "lowestAsk".
func (c *Client) TickerValue(ctx context.Context, pair, field string) (float64, error) {
	ticker, err := c.PairTicker(ctx, pair)
	if err != nil {
		return 0, err
	}
	value, err := narrow(ticker, cmdTicker, field)
	if err != nil {
		return 0, err
	}
	return toFloat(value, cmdTicker, field)
}

// Volume24h returns the rolling 24-hour volume of every market plus the totals.
func (c *Client) Volume24h(ctx context.Context) (map[string]any, error) {
	return c.publicObject(ctx, command(cmdVolume24h))
}

// PairVolume24h returns the 24-hour volume of one market keyed by currency.
func (c *Client) PairVolume24h(ctx context.Context, pair string) (map[string]any, error) {
	all, err := c.Volume24h(ctx)
	if err != nil {
		return nil, err
	}
	return narrowObject(all, cmdVolume24h, pair)
}

// Volume24hValue returns the 24-hour volume of one market in one of its currencies.
func (c *Client) Volume24hValue(ctx context.Context, pair, currency string) (float64, error) {
	volume, err := c.PairVolume24h(ctx, pair)
	if err != nil {
		return 0, err
	}
	value, err := narrow(volume, cmdVolume24h, currency)
	if err != nil {
		return 0, err
	}
	return toFloat(value, cmdVolume24h, currency)
}

func orderBookParams(pair string, depth int) url.Values {
	if pair == "" {
		pair = allPairs
	}
	if depth <= 0 {
		depth = defaultBookDepth
	}
	params := command(cmdOrderBook)
	params.Set("currencyPair", pair)
	params.Set("depth", strconv.Itoa(depth))
	return params
}

// OrderBook returns the order book of pair, or of every market when pair is empty or "all".
// A non-positive depth requests 50 levels.
func (c *Client) OrderBook(ctx context.Context, pair string, depth int) (map[string]any, error) {
	return c.publicObject(ctx, orderBookParams(pair, depth))
}

// OrderBookSide returns the asks or bids of one market as numeric levels in reply order.
func (c *Client) OrderBookSide(ctx context.Context, pair string, depth int, side string) ([]PriceLevel, error) {
	if side != SideAsks && side != SideBids {
		return nil, errs.New(exchangeName, errs.CodeInvalid,
			errs.WithMessage("order book side must be asks or bids"),
			errs.WithField("side", side))
	}
	book, err := c.OrderBook(ctx, pair, depth)
	if err != nil {
		return nil, err
	}
	levels, err := narrow(book, cmdOrderBook, side)
	if err != nil {
		return nil, err
	}
	return toLevels(levels, cmdOrderBook, side)
}

// OrderBookField returns an integer field of one market's book, such as "isFrozen" or "seq".
func (c *Client) OrderBookField(ctx context.Context, pair string, depth int, field string) (int64, error) {
	book, err := c.OrderBook(ctx, pair, depth)
	if err != nil {
		return 0, err
	}
	value, err := narrow(book, cmdOrderBook, field)
	if err != nil {
		return 0, err
	}
	return toInt(value, cmdOrderBook, field)
}

// MarketTradeHistory returns the most recent public trades of a market.
func (c *Client) MarketTradeHistory(ctx context.Context, pair string) ([]any, error) {
	params := command(cmdTradeHistory)
	params.Set("currencyPair", pair)
	reply, err := c.Query(ctx, false, params)
	if err != nil {
		return nil, err
	}
	return asList(reply, cmdTradeHistory, pair)
}

// ChartData returns candlesticks of pair from start, optionally until end. Both bounds use
// TimestampLayout in local time; an empty end is omitted. period is in seconds.
func (c *Client) ChartData(ctx context.Context, pair, start string, period int, end string) ([]any, error) {
	params := command(cmdChartData)
	params.Set("currencyPair", pair)
	from, err := epochSeconds("start", start)
	if err != nil {
		return nil, err
	}
	params.Set("start", from)
	params.Set("period", strconv.Itoa(period))
	if end != "" {
		to, err := epochSeconds("end", end)
		if err != nil {
			return nil, err
		}
		params.Set("end", to)
	}
	reply, err := c.Query(ctx, false, params)
	if err != nil {
		return nil, err
	}
	return asList(reply, cmdChartData, pair)
}

// Currencies returns information about every currency.
func (c *Client) Currencies(ctx context.Context) (map[string]any, error) {
	return c.publicObject(ctx, command(cmdCurrencies))
}

// Currency returns information about one currency.
func (c *Client) Currency(ctx context.Context, currency string) (map[string]any, error) {
	all, err := c.Currencies(ctx)
	if err != nil {
		return nil, err
	}
	return narrowObject(all, cmdCurrencies, currency)
}

// CurrencyField returns one field of a currency. "txFee" is converted to float64;
// other fields pass through as decoded.
func (c *Client) CurrencyField(ctx context.Context, currency, field string) (any, error) {
	info, err := c.Currency(ctx, currency)
	if err != nil {
		return nil, err
	}
	value, err := narrow(info, cmdCurrencies, field)
	if err != nil {
		return nil, err
	}
	if field == "txFee" {
		return toFloat(value, cmdCurrencies, field)
	}
	return value, nil
}

// LoanOrders returns the loan offers and demands of a currency.
func (c *Client) LoanOrders(ctx context.Context, currency string) (map[string]any, error) {
	params := command(cmdLoanOrders)
	params.Set("currency", currency)
	return c.publicObject(ctx, params)
}

// LoanOrdersField returns the "offers" or "demands" list of a currency.
func (c *Client) LoanOrdersField(ctx context.Context, currency, field string) ([]any, error) {
	orders, err := c.LoanOrders(ctx, currency)
	if err != nil {
		return nil, err
	}
	value, err := narrow(orders, cmdLoanOrders, field)
	if err != nil {
		return nil, err
	}
	return asList(value, cmdLoanOrders, field)
}
