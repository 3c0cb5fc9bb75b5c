package poloniex

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sourcegraph/conc"

	"github.com/rpoliselit/poloniex/errs"
)

// Query sends one command. Public commands are GET requests against the public endpoint;
// private commands receive a nonce, are signed, and are POSTed to the trading endpoint.
// params is copied and never modified. A nil reply with a nil error means the transport
// classified a non-200 status.
func (c *Client) Query(ctx context.Context, private bool, params url.Values) (any, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	values := cloneValues(params)
	command := values.Get("command")

	req := Request{Command: command, Private: private}
	if private {
		if !c.Signed() {
			return nil, errs.New(exchangeName, errs.CodeConfiguration,
				errs.WithCanonicalCode(errs.CanonicalMissingCredentials),
				errs.WithMessage("private command requires API key and secret"),
				errs.WithField("command", command),
				errs.WithRemediation("construct the client with WithCredentials"))
		}
		values.Set("nonce", strconv.FormatInt(c.nonce.Next(), 10))
		encoded := values.Encode()
		signature, err := Sign(c.secret, encoded)
		if err != nil {
			return nil, err
		}
		req.Method = http.MethodPost
		req.URL = c.tradingURL
		req.Body = encoded
		req.Header = http.Header{
			"Content-Type": {"application/x-www-form-urlencoded"},
			"Sign":         {signature},
			"Key":          {c.key},
		}
	} else {
		req.Method = http.MethodGet
		req.URL = c.publicURL
		req.Query = values
	}

	var (
		reply any
		err   error
		wg    conc.WaitGroup
	)
	wg.Go(func() {
		reply, err = c.transport.Execute(ctx, req)
	})
	if recovered := wg.WaitAndRecover(); recovered != nil {
		return nil, errs.New(exchangeName, errs.CodeNetwork,
			errs.WithMessage("request task panicked"),
			errs.WithField("command", command),
			errs.WithCause(recovered.AsError()))
	}
	if err != nil {
		return nil, err
	}
	if msg, ok := remoteError(reply); ok {
		c.metrics.recordRemoteError(ctx, command)
		return nil, errs.New(exchangeName, errs.CodeExchange,
			errs.WithHTTP(http.StatusOK),
			errs.WithMessage("exchange rejected the request"),
			errs.WithRawMessage(msg),
			errs.WithField("command", command))
	}
	return reply, nil
}

func remoteError(reply any) (string, bool) {
	obj, ok := reply.(map[string]any)
	if !ok {
		return "", false
	}
	msg, ok := obj["error"].(string)
	return msg, ok
}

func cloneValues(src url.Values) url.Values {
	dst := make(url.Values, len(src)+1)
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
	return dst
}
