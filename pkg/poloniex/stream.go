package poloniex

import (
	"context"

	"github.com/rpoliselit/poloniex/errs"
)

// Streaming channel identifiers.
const (
	ChannelTicker    = 1002
	ChannelVolume24h = 1003
	ChannelHeartbeat = 1010
)

// SubscribeCommand is the JSON frame sent to the streaming endpoint. Channel holds a
// numeric channel id or a currency pair for book channels.
type SubscribeCommand struct {
	Command string `json:"command"`
	Channel any    `json:"channel"`
}

func subscribe(channel any) SubscribeCommand {
	return SubscribeCommand{Command: "subscribe", Channel: channel}
}

// TickerChannel subscribes to ticker updates of every market.
func TickerChannel() SubscribeCommand { return subscribe(ChannelTicker) }

// Volume24hChannel subscribes to 24-hour volume updates.
func Volume24hChannel() SubscribeCommand { return subscribe(ChannelVolume24h) }

// HeartbeatChannel subscribes to heartbeats.
func HeartbeatChannel() SubscribeCommand { return subscribe(ChannelHeartbeat) }

// BookChannel subscribes to the price-aggregated book of pair.
func BookChannel(pair string) SubscribeCommand { return subscribe(pair) }

// Subscription is an active stream of raw frames for one channel.
type Subscription interface {
	Messages() <-chan []byte
	Errors() <-chan error
	Close() error
}

// Streamer opens subscriptions on a streaming transport.
type Streamer interface {
	Subscribe(ctx context.Context, cmd SubscribeCommand) (Subscription, error)
}

// Subscribe opens cmd on the streamer configured with WithStreamer.
func (c *Client) Subscribe(ctx context.Context, cmd SubscribeCommand) (Subscription, error) {
	if c.streamer == nil {
		return nil, errs.New(exchangeName, errs.CodeConfiguration,
			errs.WithCanonicalCode(errs.CanonicalStreamUnsupported),
			errs.WithMessage("no streaming transport configured"),
			errs.WithRemediation("construct the client with WithStreamer"))
	}
	return c.streamer.Subscribe(ctx, cmd)
}
