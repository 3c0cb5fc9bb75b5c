package poloniex

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/rpoliselit/poloniex/errs"
	"github.com/rpoliselit/poloniex/internal/observability"
)

const (
	maintenanceCooldown = 5 * time.Minute
	gatewayCooldown     = 60 * time.Second
	maxLoggedBody       = 4 << 10
)

// Request describes one HTTP exchange with the API.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Body   string
	Header http.Header

	// Command and Private label logs and metrics; they do not alter the wire request.
	Command string
	Private bool
}

// StatusClass groups HTTP statuses by how the transport reacts to them.
type StatusClass int

const (
	StatusOK StatusClass = iota
	StatusMaintenance
	StatusGateway
	StatusServerError
	StatusUnexpected
)

func (c StatusClass) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusMaintenance:
		return "maintenance"
	case StatusGateway:
		return "gateway"
	case StatusServerError:
		return "server_error"
	default:
		return "unexpected"
	}
}

// Cooldown returns how long the transport waits after a status of this class.
func (c StatusClass) Cooldown() time.Duration {
	switch c {
	case StatusMaintenance:
		return maintenanceCooldown
	case StatusGateway:
		return gatewayCooldown
	default:
		return 0
	}
}

// Classify maps an HTTP status code to its StatusClass.
func Classify(status int) StatusClass {
	switch status {
	case http.StatusOK:
		return StatusOK
	case http.StatusForbidden:
		return StatusMaintenance
	case http.StatusBadGateway, http.StatusGatewayTimeout, 520, 522:
		return StatusGateway
	case http.StatusInternalServerError:
		return StatusServerError
	default:
		return StatusUnexpected
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// TransportConfig carries the collaborators of a Transport.
type TransportConfig struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Sleeper    Sleeper
	Logger     observability.Logger

	metrics *clientMetrics
}

// Transport executes single HTTP requests and classifies their status.
type Transport struct {
	client  *http.Client
	limiter *rate.Limiter
	sleep   Sleeper
	logger  observability.Logger
	metrics *clientMetrics
}

// NewTransport builds a Transport, filling unset collaborators with defaults.
func NewTransport(cfg TransportConfig) *Transport {
	t := &Transport{
		client:  cfg.HTTPClient,
		limiter: cfg.Limiter,
		sleep:   cfg.Sleeper,
		logger:  cfg.Logger,
		metrics: cfg.metrics,
	}
	if t.client == nil {
		t.client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if t.sleep == nil {
		t.sleep = SleepContext
	}
	if t.logger == nil {
		t.logger = observability.Log()
	}
	return t
}

// Execute performs req once. A 200 reply is decoded and returned. Other statuses are
// logged, may trigger a cooldown, and yield a nil reply with a nil error.
func (t *Transport) Execute(ctx context.Context, req Request) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID := uuid.NewString()

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, errs.New(exchangeName, errs.CodeNetwork,
				errs.WithMessage("rate limiter wait aborted"),
				errs.WithField("command", req.Command),
				errs.WithCause(err))
		}
	}

	httpReq, err := t.build(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := t.client.Do(httpReq)
	if err != nil {
		t.metrics.recordRequest(ctx, req.Command, req.Private, "network", time.Since(start))
		t.logger.Error("poloniex request failed",
			observability.F("request_id", requestID),
			observability.F("method", req.Method),
			observability.F("url", req.URL),
			observability.F("command", req.Command),
			observability.F("error", err.Error()))
		return nil, errs.New(exchangeName, errs.CodeNetwork,
			errs.WithMessage("http request failed"),
			errs.WithField("command", req.Command),
			errs.WithField("request_id", requestID),
			errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	class := Classify(resp.StatusCode)
	t.metrics.recordRequest(ctx, req.Command, req.Private, class.String(), time.Since(start))

	if class == StatusOK {
		var payload any
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return nil, errs.New(exchangeName, errs.CodeFormat,
				errs.WithHTTP(resp.StatusCode),
				errs.WithMessage("decode reply"),
				errs.WithField("command", req.Command),
				errs.WithField("request_id", requestID),
				errs.WithCause(err))
		}
		return payload, nil
	}

	fields := []observability.Field{
		observability.F("request_id", requestID),
		observability.F("method", req.Method),
		observability.F("url", req.URL),
		observability.F("command", req.Command),
		observability.F("status", resp.StatusCode),
	}

	switch class {
	case StatusMaintenance, StatusGateway:
		cooldown := class.Cooldown()
		msg := "poloniex under maintenance, cooling down"
		if class == StatusGateway {
			msg = "poloniex gateway error, cooling down"
		}
		t.logger.Info(msg, append(fields, observability.F("cooldown", cooldown.String()))...)
		t.metrics.recordCooldown(ctx, req.Command, class.String())
		if err := t.sleep(ctx, cooldown); err != nil {
			return nil, err
		}
	case StatusServerError:
		t.logger.Error("poloniex internal server error", fields...)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		t.logger.Error("poloniex unexpected status",
			append(fields, observability.F("body", strings.TrimSpace(string(body))))...)
	}
	return nil, nil
}

func (t *Transport) build(ctx context.Context, req Request) (*http.Request, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	target := req.URL
	var body io.Reader
	if method == http.MethodGet {
		if len(req.Query) > 0 {
			target += "?" + req.Query.Encode()
		}
	} else {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errs.New(exchangeName, errs.CodeInvalid,
			errs.WithMessage("build http request"),
			errs.WithField("command", req.Command),
			errs.WithCause(err))
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	return httpReq, nil
}
