package poloniex

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/rpoliselit/poloniex/errs"
)

// Sign returns the lowercase hex HMAC-SHA512 of encoded keyed by secret.
func Sign(secret []byte, encoded string) (string, error) {
	if len(secret) == 0 {
		return "", errs.New(exchangeName, errs.CodeConfiguration,
			errs.WithCanonicalCode(errs.CanonicalMissingCredentials),
			errs.WithMessage("signing secret is empty"))
	}
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(encoded))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// NonceSource hands out strictly increasing millisecond nonces.
type NonceSource struct {
	last atomic.Int64
	now  func() time.Time
}

// NewNonceSource returns a source reading the given clock; nil uses time.Now.
func NewNonceSource(now func() time.Time) *NonceSource {
	if now == nil {
		now = time.Now
	}
	return &NonceSource{now: now}
}

// Next returns max(now in milliseconds, previous nonce + 1).
func (n *NonceSource) Next() int64 {
	for {
		prev := n.last.Load()
		next := n.now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if n.last.CompareAndSwap(prev, next) {
			return next
		}
	}
}
