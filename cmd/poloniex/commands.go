package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/rpoliselit/poloniex/pkg/poloniex"
	"github.com/rpoliselit/poloniex/pkg/stream"
)

type command struct {
	usage string
	run   func(ctx context.Context, a *app, args []string) (any, error)
}

var commands = map[string]command{
	"ticker":        {"[-pair P [-field F]]", runTicker},
	"volume":        {"[-pair P [-currency C]]", runVolume},
	"book":          {"[-pair P] [-depth N] [-side asks|bids|-field isFrozen|seq]", runBook},
	"trades":        {"-pair P", runTrades},
	"chart":         {"-pair P -start T -period S [-end T]", runChart},
	"currencies":    {"[-currency C [-field F]]", runCurrencies},
	"loans":         {"-currency C [-field offers|demands]", runLoans},
	"balances":      {"[-complete] [-currency C [-field F]]", runBalances},
	"open-orders":   {"[-pair P]", runOpenOrders},
	"trade-history": {"[-pair P] [-start T] [-end T]", runTradeHistory},
	"buy":           {"-pair P -rate R -amount A [-fok] [-ioc] [-post-only]", runLimit(true)},
	"sell":          {"-pair P -rate R -amount A [-fok] [-ioc] [-post-only]", runLimit(false)},
	"market-buy":    {"-pair P -amount A", runMarket(true)},
	"market-sell":   {"-pair P -amount A", runMarket(false)},
	"cancel":        {"-pair P -order N", runCancel},
	"cancel-all":    {"[-pair P]", runCancelAll},
	"withdraw":      {"-currency C -amount A -address X [-payment-id ID] [-as C]", runWithdraw},
	"snapshot":      {"-pair P [-depth N]", runSnapshot},
	"watch":         {"-channel ticker|volume|heartbeat|PAIR [-count N]", runWatch},
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parse(fs *flag.FlagSet, args []string, required ...string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	for _, name := range required {
		f := fs.Lookup(name)
		if f == nil || strings.TrimSpace(f.Value.String()) == "" || f.Value.String() == "0" {
			return fmt.Errorf("%w: -%s is required", errUsage, name)
		}
	}
	return nil
}

func runTicker(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("ticker")
	pair := fs.String("pair", "", "currency pair")
	field := fs.String("field", "", "numeric ticker field")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	switch {
	case *pair == "":
		return a.client.Ticker(ctx)
	case *field == "":
		return a.client.PairTicker(ctx, *pair)
	default:
		return a.client.TickerValue(ctx, *pair, *field)
	}
}

func runVolume(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("volume")
	pair := fs.String("pair", "", "currency pair")
	currency := fs.String("currency", "", "currency of the pair")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	switch {
	case *pair == "":
		return a.client.Volume24h(ctx)
	case *currency == "":
		return a.client.PairVolume24h(ctx, *pair)
	default:
		return a.client.Volume24hValue(ctx, *pair, *currency)
	}
}

func runBook(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("book")
	pair := fs.String("pair", "all", "currency pair")
	depth := fs.Int("depth", 50, "levels per side")
	side := fs.String("side", "", "asks or bids")
	field := fs.String("field", "", "isFrozen or seq")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	switch {
	case *side != "":
		return a.client.OrderBookSide(ctx, *pair, *depth, *side)
	case *field != "":
		return a.client.OrderBookField(ctx, *pair, *depth, *field)
	default:
		return a.client.OrderBook(ctx, *pair, *depth)
	}
}

func runTrades(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("trades")
	pair := fs.String("pair", "", "currency pair")
	if err := parse(fs, args, "pair"); err != nil {
		return nil, err
	}
	return a.client.MarketTradeHistory(ctx, *pair)
}

func runChart(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("chart")
	pair := fs.String("pair", "", "currency pair")
	start := fs.String("start", "", "window start, "+poloniex.TimestampLayout)
	end := fs.String("end", "", "window end, "+poloniex.TimestampLayout)
	period := fs.Int("period", 0, "candle period in seconds")
	if err := parse(fs, args, "pair", "start", "period"); err != nil {
		return nil, err
	}
	return a.client.ChartData(ctx, *pair, *start, *period, *end)
}

func runCurrencies(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("currencies")
	currency := fs.String("currency", "", "currency")
	field := fs.String("field", "", "currency field")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	switch {
	case *currency == "":
		return a.client.Currencies(ctx)
	case *field == "":
		return a.client.Currency(ctx, *currency)
	default:
		return a.client.CurrencyField(ctx, *currency, *field)
	}
}

func runLoans(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("loans")
	currency := fs.String("currency", "", "currency")
	field := fs.String("field", "", "offers or demands")
	if err := parse(fs, args, "currency"); err != nil {
		return nil, err
	}
	if *field == "" {
		return a.client.LoanOrders(ctx, *currency)
	}
	return a.client.LoanOrdersField(ctx, *currency, *field)
}

func runBalances(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("balances")
	complete := fs.Bool("complete", false, "include on-order and BTC value")
	currency := fs.String("currency", "", "currency")
	field := fs.String("field", "", "available, onOrders, or btcValue")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	if !*complete && *field == "" {
		if *currency == "" {
			return a.client.Balances(ctx)
		}
		return a.client.Balance(ctx, *currency)
	}
	switch {
	case *currency == "":
		return a.client.CompleteBalances(ctx)
	case *field == "":
		return a.client.CompleteBalance(ctx, *currency)
	default:
		return a.client.CompleteBalanceField(ctx, *currency, *field)
	}
}

func runOpenOrders(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("open-orders")
	pair := fs.String("pair", "", "currency pair")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.client.OpenOrders(ctx, *pair)
}

func runTradeHistory(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("trade-history")
	pair := fs.String("pair", "", "currency pair")
	start := fs.String("start", "", "window start, "+poloniex.TimestampLayout)
	end := fs.String("end", "", "window end, "+poloniex.TimestampLayout)
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.client.TradeHistory(ctx, *pair, *start, *end)
}

func runLimit(buy bool) func(context.Context, *app, []string) (any, error) {
	return func(ctx context.Context, a *app, args []string) (any, error) {
		fs := newFlags("limit")
		pair := fs.String("pair", "", "currency pair")
		rate := fs.Float64("rate", 0, "limit price")
		amount := fs.Float64("amount", 0, "order size")
		var flags poloniex.OrderFlags
		fs.BoolVar(&flags.FillOrKill, "fok", false, "fill or kill")
		fs.BoolVar(&flags.ImmediateOrCancel, "ioc", false, "immediate or cancel")
		fs.BoolVar(&flags.PostOnly, "post-only", false, "post only")
		if err := parse(fs, args, "pair", "rate", "amount"); err != nil {
			return nil, err
		}
		if buy {
			return a.client.LimitBuy(ctx, *pair, *rate, *amount, flags)
		}
		return a.client.LimitSell(ctx, *pair, *rate, *amount, flags)
	}
}

func runMarket(buy bool) func(context.Context, *app, []string) (any, error) {
	return func(ctx context.Context, a *app, args []string) (any, error) {
		fs := newFlags("market")
		pair := fs.String("pair", "", "currency pair")
		amount := fs.Float64("amount", 0, "total size")
		if err := parse(fs, args, "pair", "amount"); err != nil {
			return nil, err
		}
		var (
			results []map[string]any
			err     error
		)
		if buy {
			results, err = a.client.MarketBuy(ctx, *pair, *amount)
		} else {
			results, err = a.client.MarketSell(ctx, *pair, *amount)
		}
		if err != nil && len(results) > 0 {
			_ = writeJSON(a.out, results)
			fmt.Fprintf(a.errOut, "%s %d orders placed before the failure\n", a.au.Yellow("partial:"), len(results))
		}
		return results, err
	}
}

func runCancel(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("cancel")
	pair := fs.String("pair", "", "currency pair")
	order := fs.Int64("order", 0, "order number")
	if err := parse(fs, args, "pair", "order"); err != nil {
		return nil, err
	}
	return a.client.CancelOrder(ctx, *pair, *order)
}

func runCancelAll(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("cancel-all")
	pair := fs.String("pair", "", "currency pair")
	if err := parse(fs, args); err != nil {
		return nil, err
	}
	return a.client.CancelAllOrders(ctx, *pair)
}

func runWithdraw(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("withdraw")
	var req poloniex.WithdrawRequest
	fs.StringVar(&req.Currency, "currency", "", "currency")
	fs.Float64Var(&req.Amount, "amount", 0, "amount")
	fs.StringVar(&req.Address, "address", "", "destination address")
	fs.StringVar(&req.PaymentID, "payment-id", "", "payment id or memo")
	fs.StringVar(&req.CurrencyToWithdrawAs, "as", "", "currency to withdraw as")
	if err := parse(fs, args, "currency", "amount", "address"); err != nil {
		return nil, err
	}
	return a.client.Withdraw(ctx, req)
}

func runSnapshot(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("snapshot")
	pair := fs.String("pair", "", "currency pair")
	depth := fs.Int("depth", 20, "levels per side")
	if err := parse(fs, args, "pair"); err != nil {
		return nil, err
	}
	return a.client.Snapshot(ctx, *pair, *depth)
}

func watchCommand(channel string) poloniex.SubscribeCommand {
	switch strings.ToLower(channel) {
	case "ticker":
		return poloniex.TickerChannel()
	case "volume":
		return poloniex.Volume24hChannel()
	case "heartbeat":
		return poloniex.HeartbeatChannel()
	default:
		return poloniex.BookChannel(strings.ToUpper(channel))
	}
}

// runWatch prints raw stream frames, one per line, until count frames arrive or ctx ends.
func runWatch(ctx context.Context, a *app, args []string) (any, error) {
	fs := newFlags("watch")
	channel := fs.String("channel", "", "ticker, volume, heartbeat, or a currency pair")
	count := fs.Int("count", 0, "stop after N frames (0 streams until interrupted)")
	if err := parse(fs, args, "channel"); err != nil {
		return nil, err
	}

	conn, err := stream.Dial(ctx, stream.Config{
		URL:               a.cfg.Stream.URL,
		Logger:            a.logger,
		ReconnectInterval: a.cfg.Stream.ReconnectInterval,
		MaxReconnectDelay: a.cfg.Stream.MaxReconnectDelay,
		Meter:             a.meters.Meter(stream.MeterName),
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	client := newClient(a.cfg, a.logger,
		poloniex.WithMeter(a.meters.Meter(poloniex.MeterName)),
		poloniex.WithStreamer(conn))

	sub, err := client.Subscribe(ctx, watchCommand(*channel))
	if err != nil {
		return nil, err
	}
	defer func() { _ = sub.Close() }()

	seen := 0
	errCh := sub.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			fmt.Fprintf(a.errOut, "%s %v\n", a.au.Yellow("stream:"), err)
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil, nil
			}
			fmt.Fprintln(a.out, string(msg))
			seen++
			if *count > 0 && seen >= *count {
				return nil, nil
			}
		}
	}
}
