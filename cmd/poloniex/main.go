// Command poloniex queries the Poloniex API from the command line and prints JSON replies.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/logrusorgru/aurora"

	"github.com/rpoliselit/poloniex/internal/config"
	"github.com/rpoliselit/poloniex/internal/observability"
	"github.com/rpoliselit/poloniex/internal/telemetry"
	"github.com/rpoliselit/poloniex/pkg/poloniex"
)

const (
	defaultConfigPath        = "poloniex.yaml"
	telemetryShutdownTimeout = 5 * time.Second

	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

var errUsage = errors.New("usage")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// app carries everything a subcommand needs.
type app struct {
	cfg    config.Config
	client *poloniex.Client
	logger observability.Logger
	meters *telemetry.Provider
	out    io.Writer
	errOut io.Writer
	au     aurora.Aurora
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("poloniex", flag.ContinueOnError)
	global.SetOutput(stderr)
	cfgPath := global.String("config", defaultConfigPath, "Path to YAML configuration file")
	noColor := global.Bool("no-color", false, "Disable colored status output")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	au := aurora.NewAurora(!*noColor)

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return exitUsage
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fmt.Fprintf(stderr, "%s unknown command %q\n", au.Red("error:"), rest[0])
		printUsage(stderr)
		return exitUsage
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(stderr, "%s load config: %v\n", au.Red("error:"), err)
		return exitUsage
	}

	logger := observability.NewSlogLogger(slog.New(observability.NewHandler(stderr, cfg.Log.Format, cfg.Log.Level)))
	observability.SetLogger(logger)

	provider, err := telemetry.NewProvider(ctx, cfg.TelemetrySettings())
	if err != nil {
		fmt.Fprintf(stderr, "%s initialize telemetry: %v\n", au.Red("error:"), err)
		return exitError
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", observability.F("error", err.Error()))
		}
	}()

	a := &app{
		cfg:    cfg,
		client: newClient(cfg, logger, poloniex.WithMeter(provider.Meter(poloniex.MeterName))),
		logger: logger,
		meters: provider,
		out:    stdout,
		errOut: stderr,
		au:     au,
	}

	start := time.Now()
	result, err := cmd.run(ctx, a, rest[1:])
	switch {
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "usage: poloniex %s %s\n", rest[0], cmd.usage)
		return exitUsage
	case err != nil:
		fmt.Fprintf(stderr, "%s %s: %v\n", au.Red("error:"), rest[0], err)
		if poloniex.IsEmptyReply(err) {
			fmt.Fprintf(stderr, "%s the exchange returned no data; retry later\n", au.Yellow("hint:"))
		}
		return exitError
	}
	if result != nil {
		if err := writeJSON(stdout, result); err != nil {
			fmt.Fprintf(stderr, "%s encode result: %v\n", au.Red("error:"), err)
			return exitError
		}
	}
	fmt.Fprintf(stderr, "%s %s (%s, %v)\n", au.Bold(au.Green("ok")), rest[0], a.client, time.Since(start).Round(time.Millisecond))
	return exitOK
}

func newClient(cfg config.Config, logger observability.Logger, extra ...poloniex.Option) *poloniex.Client {
	opts := []poloniex.Option{
		poloniex.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		poloniex.WithLogger(logger),
		poloniex.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.Burst),
	}
	if cfg.Signed() {
		opts = append(opts, poloniex.WithCredentials(cfg.Credentials.Key, cfg.Credentials.Secret))
	}
	return poloniex.New(append(opts, extra...)...)
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: poloniex [-config file] [-no-color] <command> [flags]")
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].usage)
	}
}
