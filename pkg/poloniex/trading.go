package poloniex

import (
	"context"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
)

const (
	cmdBalances         = "returnBalances"
	cmdCompleteBalances = "returnCompleteBalances"
	cmdOpenOrders       = "returnOpenOrders"
	cmdBuy              = "buy"
	cmdSell             = "sell"
	cmdCancelOrder      = "cancelOrder"
	cmdCancelAllOrders  = "cancelAllOrders"
	cmdWithdraw         = "withdraw"
)

// OrderFlags selects the execution constraints of a limit order.
type OrderFlags struct {
	FillOrKill        bool
	ImmediateOrCancel bool
	PostOnly          bool
}

func (f OrderFlags) apply(params url.Values) {
	if f.FillOrKill {
		params.Set("fillOrKill", "1")
	}
	if f.ImmediateOrCancel {
		params.Set("immediateOrCancel", "1")
	}
	if f.PostOnly {
		params.Set("postOnly", "1")
	}
}

// WithdrawRequest describes a withdrawal. PaymentID and CurrencyToWithdrawAs are optional.
type WithdrawRequest struct {
	Currency             string
	Amount               float64
	Address              string
	PaymentID            string
	CurrencyToWithdrawAs string
}

func formatNumber(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func (c *Client) privateObject(ctx context.Context, params url.Values) (map[string]any, error) {
	name := params.Get("command")
	reply, err := c.Query(ctx, true, params)
	if err != nil {
		return nil, err
	}
	return asObject(reply, name, "")
}

func (c *Client) privateAny(ctx context.Context, params url.Values) (any, error) {
	reply, err := c.Query(ctx, true, params)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, emptyReply(params.Get("command"))
	}
	return reply, nil
}

// Balances returns the available balance of every currency.
func (c *Client) Balances(ctx context.Context) (map[string]float64, error) {
	raw, err := c.privateObject(ctx, command(cmdBalances))
	if err != nil {
		return nil, err
	}
	balances := make(map[string]float64, len(raw))
	for currency, value := range raw {
		amount, err := toFloat(value, cmdBalances, currency)
		if err != nil {
			return nil, err
		}
		balances[currency] = amount
	}
	return balances, nil
}

// Balance returns the available balance of one currency.
func (c *Client) Balance(ctx context.Context, currency string) (float64, error) {
	raw, err := c.privateObject(ctx, command(cmdBalances))
	if err != nil {
		return 0, err
	}
	value, err := narrow(raw, cmdBalances, currency)
	if err != nil {
		return 0, err
	}
	return toFloat(value, cmdBalances, currency)
}

// CompleteBalances returns available, on-order, and BTC-valued balances for every currency.
func (c *Client) CompleteBalances(ctx context.Context) (map[string]any, error) {
	return c.privateObject(ctx, command(cmdCompleteBalances))
}

// CompleteBalance returns the complete balance entry of one currency.
func (c *Client) CompleteBalance(ctx context.Context, currency string) (map[string]any, error) {
	all, err := c.CompleteBalances(ctx)
	if err != nil {
		return nil, err
	}
	return narrowObject(all, cmdCompleteBalances, currency)
}

// CompleteBalanceField returns "available", "onOrders", or "btcValue" of one currency.
func (c *Client) CompleteBalanceField(ctx context.Context, currency, field string) (float64, error) {
	entry, err := c.CompleteBalance(ctx, currency)
	if err != nil {
		return 0, err
	}
	value, err := narrow(entry, cmdCompleteBalances, field)
	if err != nil {
		return 0, err
	}
	return toFloat(value, cmdCompleteBalances, field)
}

// OpenOrders returns open orders of pair, or of every market when pair is empty.
func (c *Client) OpenOrders(ctx context.Context, pair string) (any, error) {
	if pair == "" {
		pair = allPairs
	}
	params := command(cmdOpenOrders)
	params.Set("currencyPair", pair)
	return c.privateAny(ctx, params)
}

// TradeHistory returns the account's trades of pair (every market when empty) within the
// optional start and end bounds, each in TimestampLayout local time.
func (c *Client) TradeHistory(ctx context.Context, pair, start, end string) (any, error) {
	if pair == "" {
		pair = allPairs
	}
	params := command(cmdTradeHistory)
	params.Set("currencyPair", pair)
	if start != "" {
		from, err := epochSeconds("start", start)
		if err != nil {
			return nil, err
		}
		params.Set("start", from)
	}
	if end != "" {
		to, err := epochSeconds("end", end)
		if err != nil {
			return nil, err
		}
		params.Set("end", to)
	}
	return c.privateAny(ctx, params)
}

func (c *Client) placeLimit(ctx context.Context, side, pair string, rate, amount float64, flags OrderFlags) (map[string]any, error) {
	params := command(side)
	params.Set("currencyPair", pair)
	params.Set("rate", formatNumber(rate))
	params.Set("amount", formatNumber(amount))
	flags.apply(params)
	return c.privateObject(ctx, params)
}

// LimitBuy places a buy order for amount at rate.
func (c *Client) LimitBuy(ctx context.Context, pair string, rate, amount float64, flags OrderFlags) (map[string]any, error) {
	return c.placeLimit(ctx, cmdBuy, pair, rate, amount, flags)
}

// LimitSell places a sell order for amount at rate.
func (c *Client) LimitSell(ctx context.Context, pair string, rate, amount float64, flags OrderFlags) (map[string]any, error) {
	return c.placeLimit(ctx, cmdSell, pair, rate, amount, flags)
}

// CancelOrder cancels one order of a market.
func (c *Client) CancelOrder(ctx context.Context, pair string, orderNumber int64) (map[string]any, error) {
	params := command(cmdCancelOrder)
	params.Set("currencyPair", pair)
	params.Set("orderNumber", strconv.FormatInt(orderNumber, 10))
	return c.privateObject(ctx, params)
}

// CancelAllOrders cancels every open order of pair, or of every market when pair is empty.
func (c *Client) CancelAllOrders(ctx context.Context, pair string) (map[string]any, error) {
	params := command(cmdCancelAllOrders)
	if pair != "" {
		params.Set("currencyPair", pair)
	}
	return c.privateObject(ctx, params)
}

// Withdraw places a withdrawal without email confirmation.
func (c *Client) Withdraw(ctx context.Context, req WithdrawRequest) (map[string]any, error) {
	params := command(cmdWithdraw)
	params.Set("currency", req.Currency)
	params.Set("amount", formatNumber(req.Amount))
	params.Set("address", req.Address)
	if req.PaymentID != "" {
		params.Set("paymentId", req.PaymentID)
	}
	if req.CurrencyToWithdrawAs != "" {
		params.Set("currencyToWithdrawAs", req.CurrencyToWithdrawAs)
	}
	return c.privateObject(ctx, params)
}
