package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormattingIncludesCanonicalAndFields(t *testing.T) {
	err := New(
		"poloniex",
		CodeNotFound,
		WithHTTP(200),
		WithMessage("key missing from reply"),
		WithRawMessage("BTC_XRP"),
		WithCanonicalCode(CanonicalMissingKey),
		WithField("command", "returnTicker"),
		WithField("key", "BTC_XRP"),
		WithRemediation("check the currency pair spelling"),
		WithCause(errors.New("lookup failed")),
	)

	out := err.Error()
	if !strings.Contains(out, "exchange=poloniex") {
		t.Fatalf("expected exchange marker in error string: %s", out)
	}
	if !strings.Contains(out, "code=not_found") {
		t.Fatalf("expected code in error string: %s", out)
	}
	if !strings.Contains(out, "canonical=missing_key") {
		t.Fatalf("expected canonical classification in error string: %s", out)
	}
	expectedFields := "fields=command=\"returnTicker\",key=\"BTC_XRP\""
	if !strings.Contains(out, expectedFields) {
		t.Fatalf("expected fields %q in error string: %s", expectedFields, out)
	}
	if !strings.Contains(out, "remediation=\"check the currency pair spelling\"") {
		t.Fatalf("expected remediation guidance in error string: %s", out)
	}
	if !strings.Contains(out, "cause=\"lookup failed\"") {
		t.Fatalf("expected wrapped cause in error string: %s", out)
	}
}

func TestWithCanonicalCodeEmptyDefaultsToUnknown(t *testing.T) {
	err := New("poloniex", CodeInvalid, WithCanonicalCode("   "))
	if err.Canonical != CanonicalUnknown {
		t.Fatalf("expected canonical code to default to unknown, got %q", err.Canonical)
	}
	if strings.Contains(err.Error(), "canonical=") {
		t.Fatalf("canonical marker should be omitted when code is unknown: %s", err.Error())
	}
}

func TestWithFieldOverwritesAndSkipsBlankKeys(t *testing.T) {
	err := New(
		"poloniex",
		CodeExchange,
		WithField("nonce", "1"),
		WithField("nonce", "2"),
		WithField("  ", "ignored"),
	)

	if got := err.Fields["nonce"]; got != "2" {
		t.Fatalf("expected latest field to win, got %q", got)
	}
	if len(err.Fields) != 1 {
		t.Fatalf("expected blank keys to be skipped, got %v", err.Fields)
	}
}

func TestCodeOfUnwrapsChains(t *testing.T) {
	base := New("poloniex", CodeConfiguration, WithCanonicalCode(CanonicalMissingCredentials))
	wrapped := fmt.Errorf("balances: %w", base)

	if got := CodeOf(wrapped); got != CodeConfiguration {
		t.Fatalf("expected configuration code, got %q", got)
	}
	if !IsCode(wrapped, CodeConfiguration) {
		t.Fatal("expected IsCode to match wrapped envelope")
	}
	if IsCode(wrapped, CodeNetwork) {
		t.Fatal("IsCode matched the wrong code")
	}
	if IsCode(nil, CodeConfiguration) {
		t.Fatal("IsCode matched a nil error")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatal("expected empty code for plain errors")
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := New("poloniex", CodeNetwork, WithCause(cause))
	if !errors.Is(err, cause) {
		t.Fatal("expected errors.Is to find the cause")
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("expected <nil> string for nil error, got %q", got)
	}
}
