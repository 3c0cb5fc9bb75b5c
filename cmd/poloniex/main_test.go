package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rpoliselit/poloniex/pkg/poloniex"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	t.Setenv("POLONIEX_API_KEY", "")
	t.Setenv("POLONIEX_API_SECRET", "")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poloniex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, &stdout, &stderr)
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr.String(), "market-buy")
	require.Empty(t, stdout.String())
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-no-color", "moon"}, &stdout, &stderr)
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr.String(), `unknown command "moon"`)
}

func TestBalancesWithoutCredentialsFailsBeforeNetwork(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfig(t, "log:\n  level: error\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "-no-color", "balances"}, &stdout, &stderr)
	require.Equal(t, exitError, code)
	require.Contains(t, stderr.String(), "code=configuration")
	require.Empty(t, stdout.String())
}

func TestMissingRequiredFlagIsUsageError(t *testing.T) {
	clearCredentialEnv(t)
	path := writeConfig(t, "log:\n  level: error\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "buy", "-pair", "BTC_LTC"}, &stdout, &stderr)
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr.String(), "usage: poloniex buy")
}

func TestInvalidConfigIsReported(t *testing.T) {
	path := writeConfig(t, "log:\n  format: xml\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-config", path, "-no-color", "ticker"}, &stdout, &stderr)
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr.String(), "load config")
	require.Empty(t, stdout.String())
}

func TestWatchPrintsFrames(t *testing.T) {
	clearCredentialEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "shutdown")
		if _, _, err := conn.Read(r.Context()); err != nil {
			return
		}
		for _, frame := range []string{`[1002,1]`, `[1002,null,[149,"382.98"]]`} {
			writeCtx, cancel := context.WithTimeout(r.Context(), time.Second)
			_ = conn.Write(writeCtx, websocket.MessageText, []byte(frame))
			cancel()
		}
		for {
			if _, _, err := conn.Read(r.Context()); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	path := writeConfig(t, "log:\n  level: error\nstream:\n  url: "+wsURL+"\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-config", path, "-no-color", "watch", "-channel", "ticker", "-count", "2"}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Equal(t, []string{`[1002,1]`, `[1002,null,[149,"382.98"]]`}, lines)
}

func TestWatchCommandMapping(t *testing.T) {
	require.Equal(t, poloniex.TickerChannel(), watchCommand("ticker"))
	require.Equal(t, poloniex.Volume24hChannel(), watchCommand("Volume"))
	require.Equal(t, poloniex.HeartbeatChannel(), watchCommand("heartbeat"))
	require.Equal(t, poloniex.BookChannel("BTC_ETH"), watchCommand("btc_eth"))
}

func TestWriteJSONIndents(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]float64{"BTC": 0.5}))
	require.Equal(t, "{\n  \"BTC\": 0.5\n}\n", buf.String())
}
