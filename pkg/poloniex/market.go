package poloniex

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpoliselit/poloniex/errs"
)

// MarketBuy emulates a market buy by walking the asks best-first and placing
// immediate-or-cancel orders until amount is covered or the book runs out.
// Levels without size are skipped. On a failed placement the responses gathered so far
// are returned with the error; earlier fills stay in place.
func (c *Client) MarketBuy(ctx context.Context, pair string, amount float64) ([]map[string]any, error) {
	return c.walk(ctx, pair, amount, SideAsks, c.LimitBuy)
}

// MarketSell is the sell-side counterpart of MarketBuy, walking the bids.
func (c *Client) MarketSell(ctx context.Context, pair string, amount float64) ([]map[string]any, error) {
	return c.walk(ctx, pair, amount, SideBids, c.LimitSell)
}

type placeFunc func(ctx context.Context, pair string, rate, amount float64, flags OrderFlags) (map[string]any, error)

func (c *Client) walk(ctx context.Context, pair string, amount float64, side string, place placeFunc) (results []map[string]any, err error) {
	start := time.Now()
	defer func() {
		c.metrics.recordWalk(ctx, side, len(results), err, time.Since(start))
	}()

	if !(amount > 0) || math.IsInf(amount, 1) {
		return nil, errs.New(exchangeName, errs.CodeInvalid,
			errs.WithMessage("market order amount must be a positive number"),
			errs.WithField("pair", pair),
			errs.WithField("amount", strconv.FormatFloat(amount, 'g', -1, 64)))
	}

	levels, err := c.OrderBookSide(ctx, pair, 0, side)
	if err != nil {
		return nil, err
	}

	ioc := OrderFlags{ImmediateOrCancel: true}
	remaining := decimal.NewFromFloat(amount)
	for _, level := range levels {
		if !remaining.IsPositive() {
			break
		}
		size := decimal.NewFromFloat(level.Amount())
		if !size.IsPositive() {
			continue
		}
		if size.LessThan(remaining) {
			resp, err := place(ctx, pair, level.Rate(), level.Amount(), ioc)
			if err != nil {
				return results, err
			}
			results = append(results, resp)
			remaining = remaining.Sub(size)
			continue
		}
		resp, err := place(ctx, pair, level.Rate(), remaining.InexactFloat64(), ioc)
		if err != nil {
			return results, err
		}
		results = append(results, resp)
		break
	}
	return results, nil
}
