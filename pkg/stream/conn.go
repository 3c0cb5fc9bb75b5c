// Package stream implements the Poloniex websocket transport behind poloniex.Streamer.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/rpoliselit/poloniex/internal/observability"
	"github.com/rpoliselit/poloniex/internal/telemetry"
	"github.com/rpoliselit/poloniex/pkg/poloniex"
)

const (
	defaultReadyTimeout = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
	defaultBuffer       = 256
	maxFrameBytes       = 16 << 20
	// Channel ids at or above this value are fixed public channels; lower ids are
	// assigned per market book and announced in the initial-state message.
	firstFixedChannel = 1000

	// MeterName names the meter a Conn records on when Config.Meter is unset.
	MeterName = "poloniex.stream"
)

// Config configures a Conn.
type Config struct {
	URL               string
	Logger            observability.Logger
	ReadyTimeout      time.Duration
	WriteTimeout      time.Duration
	ReconnectInterval time.Duration
	MaxReconnectDelay time.Duration
	Buffer            int
	Meter             metric.Meter
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = poloniex.WebsocketURL
	}
	if c.Logger == nil {
		c.Logger = observability.Log()
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = defaultReadyTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.Buffer <= 0 {
		c.Buffer = defaultBuffer
	}
	if c.Meter == nil {
		c.Meter = otel.Meter(MeterName)
	}
	return c
}

// Conn is a single websocket connection multiplexing every subscription.
// It reconnects with exponential backoff and restores subscriptions afterwards.
type Conn struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	conn   *websocket.Conn
	connMu sync.RWMutex
	sendMu sync.Mutex

	subsMu   sync.Mutex
	subs     map[string]map[*subscription]struct{}
	channels map[string]any
	bound    map[int64]string

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	closeOnce sync.Once

	reconnects metric.Int64Counter
	frames     metric.Int64Counter
}

// Dial connects to the streaming endpoint and waits for the first connection.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()
	connCtx, cancel := context.WithCancel(context.Background())
	c := &Conn{
		cfg:      cfg,
		ctx:      connCtx,
		cancel:   cancel,
		subs:     make(map[string]map[*subscription]struct{}),
		channels: make(map[string]any),
		bound:    make(map[int64]string),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}
	meter := cfg.Meter
	c.reconnects, _ = meter.Int64Counter(telemetry.MetricStreamReconnects,
		metric.WithDescription("Websocket reconnect attempts"),
		metric.WithUnit("{reconnect}"))
	c.frames, _ = meter.Int64Counter(telemetry.MetricStreamFrames,
		metric.WithDescription("Websocket frames routed to subscriptions"),
		metric.WithUnit("{frame}"))

	go func() {
		defer close(c.done)
		if err := c.run(); err != nil && !errors.Is(err, context.Canceled) {
			c.reportError(fmt.Errorf("stream connection failed: %w", err))
		}
	}()

	timer := time.NewTimer(cfg.ReadyTimeout)
	defer timer.Stop()
	select {
	case <-c.ready:
		return c, nil
	case <-timer.C:
		c.shutdown()
		return nil, errors.New("timeout waiting for websocket connection")
	case <-ctx.Done():
		c.shutdown()
		return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
	}
}

// Subscribe registers a subscription and sends the subscribe command when it is the
// first one for its channel.
func (c *Conn) Subscribe(ctx context.Context, cmd poloniex.SubscribeCommand) (poloniex.Subscription, error) {
	key, err := channelKey(cmd.Channel)
	if err != nil {
		return nil, err
	}
	if cmd.Command == "" {
		cmd.Command = "subscribe"
	}
	sub := newSubscription(c, key, c.cfg.Buffer)

	c.subsMu.Lock()
	set, exists := c.subs[key]
	if !exists {
		set = make(map[*subscription]struct{})
		c.subs[key] = set
		c.channels[key] = cmd.Channel
	}
	set[sub] = struct{}{}
	c.subsMu.Unlock()

	if !exists {
		if err := c.send(ctx, cmd); err != nil {
			c.remove(sub)
			sub.shutdown()
			return nil, err
		}
	}
	return sub, nil
}

// Close unsubscribes every channel, closes the socket, and ends all subscriptions.
func (c *Conn) Close() error {
	var firstErr error
	c.closeOnce.Do(func() {
		c.subsMu.Lock()
		channels := make([]any, 0, len(c.channels))
		for _, ch := range c.channels {
			channels = append(channels, ch)
		}
		subs := make([]*subscription, 0)
		for _, set := range c.subs {
			for sub := range set {
				subs = append(subs, sub)
			}
		}
		c.subs = make(map[string]map[*subscription]struct{})
		c.channels = make(map[string]any)
		c.subsMu.Unlock()

		for _, ch := range channels {
			if err := c.send(c.ctx, poloniex.SubscribeCommand{Command: "unsubscribe", Channel: ch}); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		c.shutdown()
		for _, sub := range subs {
			sub.shutdown()
		}
	})
	return firstErr
}

func (c *Conn) shutdown() {
	c.cancel()
	c.connMu.Lock()
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "shutdown")
		c.conn = nil
	}
	c.connMu.Unlock()
	<-c.done
}

// run maintains the connection with exponential backoff between attempts.
func (c *Conn) run() error {
	backoffCfg := backoff.NewExponentialBackOff()
	if c.cfg.ReconnectInterval > 0 {
		backoffCfg.InitialInterval = c.cfg.ReconnectInterval
	}
	if c.cfg.MaxReconnectDelay > 0 {
		backoffCfg.MaxInterval = c.cfg.MaxReconnectDelay
	}
	backoffCfg.Reset()

	for attempt := 0; ; attempt++ {
		select {
		case <-c.ctx.Done():
			return context.Canceled
		default:
		}
		if attempt > 0 && c.reconnects != nil {
			c.reconnects.Add(c.ctx, 1, metric.WithAttributes(telemetry.AttrEnvironment.String(telemetry.Environment())))
		}

		conn, _, err := websocket.Dial(c.ctx, c.cfg.URL, nil)
		if err != nil {
			c.reportError(fmt.Errorf("dial %s: %w", c.cfg.URL, err))
			if !c.wait(backoffCfg.NextBackOff()) {
				return context.Canceled
			}
			continue
		}
		conn.SetReadLimit(maxFrameBytes)

		c.connMu.Lock()
		c.conn = conn
		c.connMu.Unlock()
		backoffCfg.Reset()
		c.cfg.Logger.Info("poloniex stream connected",
			observability.F("url", c.cfg.URL),
			observability.F("attempt", attempt))

		if err := c.resubscribe(); err != nil {
			c.reportError(fmt.Errorf("resubscribe after reconnect: %w", err))
		}
		c.readyOnce.Do(func() { close(c.ready) })

		if err := c.readLoop(conn); err != nil {
			if errors.Is(err, context.Canceled) {
				return context.Canceled
			}
			c.reportError(fmt.Errorf("read loop: %w", err))
		}

		c.connMu.Lock()
		c.conn = nil
		c.connMu.Unlock()

		if !c.wait(backoffCfg.NextBackOff()) {
			return context.Canceled
		}
	}
}

func (c *Conn) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// resubscribe re-sends every active channel and drops book channel bindings, which the
// exchange announces again after the new subscription.
func (c *Conn) resubscribe() error {
	c.subsMu.Lock()
	c.bound = make(map[int64]string)
	channels := make([]any, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	c.subsMu.Unlock()

	for _, ch := range channels {
		if err := c.send(c.ctx, poloniex.SubscribeCommand{Command: "subscribe", Channel: ch}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) send(ctx context.Context, cmd poloniex.SubscribeCommand) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return errors.New("websocket not connected")
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", cmd.Command, err)
	}
	if ctx == nil {
		ctx = c.ctx
	}
	writeCtx, cancel := context.WithTimeout(ctx, c.cfg.WriteTimeout)
	defer cancel()

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("write %s command: %w", cmd.Command, err)
	}
	return nil
}

func (c *Conn) readLoop(conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return context.Canceled
			}
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.MessageText {
			continue
		}
		if err := c.route(data); err != nil {
			c.reportError(err)
		}
	}
}

func (c *Conn) remove(sub *subscription) (last bool, channel any) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	set, ok := c.subs[sub.key]
	if !ok {
		return false, nil
	}
	delete(set, sub)
	if len(set) > 0 {
		return false, nil
	}
	channel = c.channels[sub.key]
	delete(c.subs, sub.key)
	delete(c.channels, sub.key)
	for id, pair := range c.bound {
		if pair == sub.key {
			delete(c.bound, id)
		}
	}
	return true, channel
}

func (c *Conn) subscribers(key string) []*subscription {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	set := c.subs[key]
	out := make([]*subscription, 0, len(set))
	for sub := range set {
		out = append(out, sub)
	}
	return out
}

func (c *Conn) reportError(err error) {
	if err == nil {
		return
	}
	c.cfg.Logger.Error("poloniex stream error", observability.F("error", err.Error()))

	c.subsMu.Lock()
	subs := make([]*subscription, 0)
	for _, set := range c.subs {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	c.subsMu.Unlock()
	for _, sub := range subs {
		sub.reportError(err)
	}
}

func channelKey(channel any) (string, error) {
	switch v := channel.(type) {
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatInt(int64(v), 10), nil
	case string:
		if v == "" {
			return "", errors.New("empty channel")
		}
		return v, nil
	default:
		return "", fmt.Errorf("unsupported channel type %T", channel)
	}
}
