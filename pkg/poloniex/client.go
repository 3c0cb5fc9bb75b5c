// Package poloniex implements a client for the Poloniex public, trading, and streaming APIs.
//
// Public market-data commands are sent as GET requests; trading commands are signed with
// HMAC-SHA512 and POSTed. Replies are decoded from JSON and reshaped by typed accessors.
package poloniex

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/rpoliselit/poloniex/internal/observability"
)

const (
	// PublicURL is the endpoint for unauthenticated market-data commands.
	PublicURL = "https://poloniex.com/public"
	// TradingURL is the endpoint for signed trading commands.
	TradingURL = "https://poloniex.com/tradingApi"
	// WebsocketURL is the streaming endpoint.
	WebsocketURL = "wss://api2.poloniex.com"
	// TimestampLayout is the human-readable format accepted by date-windowed queries.
	TimestampLayout = "2006-01-02 15:04:05"

	exchangeName       = "poloniex"
	defaultHTTPTimeout = 30 * time.Second
)

// Client issues Poloniex API calls. It is safe for concurrent use; callers that need
// nonce-ordered arrival of private calls must serialize them.
type Client struct {
	key    string
	secret []byte

	publicURL  string
	tradingURL string

	httpClient *http.Client
	limiter    *rate.Limiter
	sleeper    Sleeper
	clock      func() time.Time
	logger     observability.Logger
	streamer   Streamer
	meter      metric.Meter

	nonce     *NonceSource
	transport *Transport
	metrics   *clientMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets the API key and secret used for trading commands.
// The secret is used as the HMAC key byte for byte.
func WithCredentials(key, secret string) Option {
	return func(c *Client) {
		c.key = strings.TrimSpace(key)
		c.secret = []byte(secret)
	}
}

// WithHTTPClient replaces the HTTP client shared by every request.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithLogger sets the logger used for status classification messages.
func WithLogger(logger observability.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRateLimit throttles outgoing requests to perSecond with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithStreamer installs the streaming transport used by Subscribe.
func WithStreamer(streamer Streamer) Option {
	return func(c *Client) {
		c.streamer = streamer
	}
}

// WithMeter sets the meter that records request, cooldown, and market walk metrics.
// The global otel meter named MeterName is used otherwise.
func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.meter = meter
	}
}

func withEndpoints(publicURL, tradingURL string) Option {
	return func(c *Client) {
		c.publicURL = publicURL
		c.tradingURL = tradingURL
	}
}

func withSleeper(sleeper Sleeper) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

func withClock(clock func() time.Time) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

// New constructs a Client. Without WithCredentials only public commands succeed.
func New(opts ...Option) *Client {
	c := &Client{
		publicURL:  PublicURL,
		tradingURL: TradingURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		sleeper:    SleepContext,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.logger == nil {
		c.logger = observability.Log()
	}
	c.metrics = newClientMetrics(c.meter)
	c.nonce = NewNonceSource(c.clock)
	c.transport = NewTransport(TransportConfig{
		HTTPClient: c.httpClient,
		Limiter:    c.limiter,
		Sleeper:    c.sleeper,
		Logger:     c.logger,
		metrics:    c.metrics,
	})
	return c
}

// Signed reports whether the client carries credentials.
func (c *Client) Signed() bool {
	return c.key != "" && len(c.secret) > 0
}

func (c *Client) String() string {
	if c.Signed() {
		return "Signed Poloniex API"
	}
	return "Unsigned Poloniex API"
}
