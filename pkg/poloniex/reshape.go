package poloniex

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rpoliselit/poloniex/errs"
)

// PriceLevel is one order-book level: rate then amount.
type PriceLevel [2]float64

// Rate returns the level price.
func (l PriceLevel) Rate() float64 { return l[0] }

// Amount returns the quantity available at the level.
func (l PriceLevel) Amount() float64 { return l[1] }

// IsEmptyReply reports whether err signals that the transport produced no reply,
// in which case the caller may reissue the call.
func IsEmptyReply(err error) bool {
	var e *errs.E
	return errors.As(err, &e) && e.Code == errs.CodeUnavailable && e.Canonical == errs.CanonicalEmptyReply
}

func emptyReply(command string) error {
	return errs.New(exchangeName, errs.CodeUnavailable,
		errs.WithCanonicalCode(errs.CanonicalEmptyReply),
		errs.WithMessage("no reply from exchange"),
		errs.WithField("command", command),
		errs.WithRemediation("retry the call after the logged cooldown"))
}

func formatError(command, key string, value any) error {
	return errs.New(exchangeName, errs.CodeFormat,
		errs.WithMessage(fmt.Sprintf("unexpected %T value", value)),
		errs.WithField("command", command),
		errs.WithField("key", key))
}

func asObject(reply any, command, key string) (map[string]any, error) {
	if reply == nil {
		return nil, emptyReply(command)
	}
	obj, ok := reply.(map[string]any)
	if !ok {
		return nil, formatError(command, key, reply)
	}
	return obj, nil
}

func asList(reply any, command, key string) ([]any, error) {
	if reply == nil {
		return nil, emptyReply(command)
	}
	list, ok := reply.([]any)
	if !ok {
		return nil, formatError(command, key, reply)
	}
	return list, nil
}

func narrow(obj map[string]any, command, key string) (any, error) {
	value, ok := obj[key]
	if !ok {
		return nil, errs.New(exchangeName, errs.CodeNotFound,
			errs.WithCanonicalCode(errs.CanonicalMissingKey),
			errs.WithMessage("key missing from reply"),
			errs.WithRawMessage(key),
			errs.WithField("command", command),
			errs.WithField("key", key))
	}
	return value, nil
}

func narrowObject(obj map[string]any, command, key string) (map[string]any, error) {
	value, err := narrow(obj, command, key)
	if err != nil {
		return nil, err
	}
	sub, ok := value.(map[string]any)
	if !ok {
		return nil, formatError(command, key, value)
	}
	return sub, nil
}

func malformedNumber(command, key string, value any, cause error) error {
	return errs.New(exchangeName, errs.CodeFormat,
		errs.WithCanonicalCode(errs.CanonicalMalformedNumber),
		errs.WithMessage(fmt.Sprintf("cannot convert %v to a number", value)),
		errs.WithField("command", command),
		errs.WithField("key", key),
		errs.WithCause(cause))
}

func toFloat(value any, command, key string) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, malformedNumber(command, key, v, err)
		}
		return f, nil
	default:
		return 0, malformedNumber(command, key, value, nil)
	}
}

func toInt(value any, command, key string) (int64, error) {
	switch v := value.(type) {
	case float64:
		return int64(v), nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, malformedNumber(command, key, v, err)
		}
		return i, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, malformedNumber(command, key, value, nil)
	}
}

func toLevels(value any, command, side string) ([]PriceLevel, error) {
	rows, ok := value.([]any)
	if !ok {
		return nil, formatError(command, side, value)
	}
	levels := make([]PriceLevel, 0, len(rows))
	for _, row := range rows {
		pair, ok := row.([]any)
		if !ok || len(pair) < 2 {
			return nil, formatError(command, side, row)
		}
		rate, err := toFloat(pair[0], command, side)
		if err != nil {
			return nil, err
		}
		amount, err := toFloat(pair[1], command, side)
		if err != nil {
			return nil, err
		}
		levels = append(levels, PriceLevel{rate, amount})
	}
	return levels, nil
}

// epochSeconds parses a TimestampLayout string in local time.
func epochSeconds(field, value string) (string, error) {
	ts, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(value), time.Local)
	if err != nil {
		return "", errs.New(exchangeName, errs.CodeInvalid,
			errs.WithMessage("timestamp must match "+TimestampLayout),
			errs.WithField(field, value),
			errs.WithCause(err))
	}
	return strconv.FormatInt(ts.Unix(), 10), nil
}
