package stream

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel/metric"

	"github.com/rpoliselit/poloniex/internal/telemetry"
)

type initialState struct {
	CurrencyPair string `json:"currencyPair"`
}

// route delivers one frame of the form [channelID, seq, payload] to the subscriptions
// of its channel. Book channels are keyed by currency pair once the "i" message binds them.
func (c *Conn) route(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var reply map[string]any
		if err := json.Unmarshal(trimmed, &reply); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		if msg, ok := reply["error"].(string); ok {
			return errors.New("poloniex stream: " + msg)
		}
		return nil
	}

	var frame []json.RawMessage
	if err := json.Unmarshal(trimmed, &frame); err != nil {
		return fmt.Errorf("decode frame: %w", err)
	}
	if len(frame) == 0 {
		return nil
	}
	var id int64
	if err := json.Unmarshal(frame[0], &id); err != nil {
		return fmt.Errorf("decode channel id: %w", err)
	}

	key := strconv.FormatInt(id, 10)
	if id < firstFixedChannel {
		pair, ok := c.bookKey(id, frame)
		if !ok {
			return nil
		}
		key = pair
	}

	subs := c.subscribers(key)
	if len(subs) == 0 {
		return nil
	}
	if c.frames != nil {
		c.frames.Add(c.ctx, 1, metric.WithAttributes(telemetry.StreamAttributes(telemetry.Environment(), key)...))
	}
	for _, sub := range subs {
		sub.deliver(c.ctx, data)
	}
	return nil
}

func (c *Conn) bookKey(id int64, frame []json.RawMessage) (string, bool) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if pair, ok := c.bound[id]; ok {
		return pair, true
	}
	if len(frame) < 3 {
		return "", false
	}
	pair := initialPair(frame[2])
	if pair == "" {
		return "", false
	}
	if _, wanted := c.subs[pair]; !wanted {
		return "", false
	}
	c.bound[id] = pair
	return pair, true
}

// initialPair extracts the currency pair from a payload whose first update is
// ["i", {"currencyPair": ...}].
func initialPair(payload json.RawMessage) string {
	var updates [][]json.RawMessage
	if err := json.Unmarshal(payload, &updates); err != nil || len(updates) == 0 {
		return ""
	}
	first := updates[0]
	if len(first) < 2 {
		return ""
	}
	var kind string
	if err := json.Unmarshal(first[0], &kind); err != nil || kind != "i" {
		return ""
	}
	var state initialState
	if err := json.Unmarshal(first[1], &state); err != nil {
		return ""
	}
	return state.CurrencyPair
}
