package poloniex

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rpoliselit/poloniex/internal/observability"
)

type recordedRequest struct {
	Method string
	Path   string
	Params url.Values
	Body   string
	Header http.Header
}

type replyFunc func(params url.Values) (int, string)

// fakeExchange serves canned replies per command on /public and /tradingApi.
type fakeExchange struct {
	server *httptest.Server

	mu       sync.Mutex
	replies  map[string]replyFunc
	requests []recordedRequest
}

func newFakeExchange(t *testing.T) *fakeExchange {
	t.Helper()
	fx := &fakeExchange{replies: make(map[string]replyFunc)}
	fx.server = httptest.NewServer(http.HandlerFunc(fx.serve))
	t.Cleanup(fx.server.Close)
	return fx
}

func (fx *fakeExchange) serve(w http.ResponseWriter, r *http.Request) {
	var (
		params url.Values
		body   string
	)
	if r.Method == http.MethodPost {
		raw, _ := io.ReadAll(r.Body)
		body = string(raw)
		params, _ = url.ParseQuery(body)
	} else {
		params = r.URL.Query()
	}

	fx.mu.Lock()
	fx.requests = append(fx.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Params: params,
		Body:   body,
		Header: r.Header.Clone(),
	})
	reply, ok := fx.replies[params.Get("command")]
	fx.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, "unknown command")
		return
	}
	status, payload := reply(params)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, payload)
}

func (fx *fakeExchange) on(command string, fn replyFunc) {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	fx.replies[command] = fn
}

func (fx *fakeExchange) reply(command string, status int, payload string) {
	fx.on(command, func(url.Values) (int, string) { return status, payload })
}

func (fx *fakeExchange) recorded() []recordedRequest {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return append([]recordedRequest(nil), fx.requests...)
}

func (fx *fakeExchange) count(command string) int {
	n := 0
	for _, req := range fx.recorded() {
		if req.Params.Get("command") == command {
			n++
		}
	}
	return n
}

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.calls = append(s.calls, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) durations() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.calls...)
}

type logEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, fields []observability.Field) {
	entry := logEntry{Level: level, Msg: msg, Fields: make(map[string]any, len(fields))}
	for _, f := range fields {
		entry.Fields[f.Key] = f.Value
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, fields ...observability.Field) { l.add("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...observability.Field)  { l.add("info", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...observability.Field) { l.add("error", msg, fields) }

func (l *recordingLogger) all() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), l.entries...)
}

type harness struct {
	fx     *fakeExchange
	client *Client
	sleeps *sleepRecorder
	logs   *recordingLogger
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	fx := newFakeExchange(t)
	sleeps := &sleepRecorder{}
	logs := &recordingLogger{}
	base := []Option{
		withEndpoints(fx.server.URL+"/public", fx.server.URL+"/tradingApi"),
		withSleeper(sleeps.sleep),
		WithLogger(logs),
	}
	return &harness{
		fx:     fx,
		client: New(append(base, opts...)...),
		sleeps: sleeps,
		logs:   logs,
	}
}

func newSignedHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	return newHarness(t, append([]Option{WithCredentials("api-key", "secret")}, opts...)...)
}
