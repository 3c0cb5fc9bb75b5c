package poloniex

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// MarketSnapshot bundles the public state of one market fetched in parallel.
type MarketSnapshot struct {
	Pair   string
	Ticker map[string]any
	Volume map[string]any
	Asks   []PriceLevel
	Bids   []PriceLevel
}

// Snapshot fetches the ticker, 24-hour volume, and order book of pair concurrently.
// The first failure cancels the remaining requests. Only public commands are fanned out.
func (c *Client) Snapshot(ctx context.Context, pair string, depth int) (MarketSnapshot, error) {
	snap := MarketSnapshot{Pair: pair}
	if ctx == nil {
		ctx = context.Background()
	}

	p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError()
	p.Go(func(ctx context.Context) error {
		ticker, err := c.PairTicker(ctx, pair)
		snap.Ticker = ticker
		return err
	})
	p.Go(func(ctx context.Context) error {
		volume, err := c.PairVolume24h(ctx, pair)
		snap.Volume = volume
		return err
	})
	p.Go(func(ctx context.Context) error {
		book, err := c.OrderBook(ctx, pair, depth)
		if err != nil {
			return err
		}
		asks, err := narrow(book, cmdOrderBook, SideAsks)
		if err != nil {
			return err
		}
		if snap.Asks, err = toLevels(asks, cmdOrderBook, SideAsks); err != nil {
			return err
		}
		bids, err := narrow(book, cmdOrderBook, SideBids)
		if err != nil {
			return err
		}
		snap.Bids, err = toLevels(bids, cmdOrderBook, SideBids)
		return err
	})
	if err := p.Wait(); err != nil {
		return MarketSnapshot{Pair: pair}, err
	}
	return snap, nil
}
