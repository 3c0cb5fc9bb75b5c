package observability

import (
	"bytes"
	"log/slog"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	debugs int
	infos  int
	errors int
}

func (r *recordingLogger) Debug(string, ...Field) { r.debugs++ }
func (r *recordingLogger) Info(string, ...Field)  { r.infos++ }
func (r *recordingLogger) Error(string, ...Field) { r.errors++ }

func TestSetLoggerOverridesGlobal(t *testing.T) {
	recorder := new(recordingLogger)
	SetLogger(recorder)
	t.Cleanup(func() { SetLogger(nil) })

	Log().Debug("test")
	require.Equal(t, 1, recorder.debugs)

	SetLogger(nil)
	Log().Info("noop")
	require.Equal(t, 0, recorder.infos)
}

func TestSlogLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(NewHandler(&buf, "json", "debug")))

	logger.Error("unexpected status", F("status", 418), F("command", "returnTicker"), F(" ", "dropped"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "unexpected status", record["msg"])
	require.Equal(t, "ERROR", record["level"])
	require.EqualValues(t, 418, record["status"])
	require.Equal(t, "returnTicker", record["command"])
	require.NotContains(t, record, " ")
}

func TestSlogLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(slog.New(NewHandler(&buf, "text", "error")))

	logger.Debug("hidden")
	logger.Info("hidden")
	require.Zero(t, buf.Len())

	logger.Error("shown")
	require.Contains(t, buf.String(), "msg=shown")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		require.Equal(t, want, ParseLevel(input), "level %q", input)
	}
}
