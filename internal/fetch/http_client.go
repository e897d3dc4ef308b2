package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"newsagg/internal/logger"
)

// ClientOptions for the fetch client.
type ClientOptions struct {
	Timeout      time.Duration
	UserAgent    string
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// BlockPrivateNetworks refuses connections to loopback, private and
	// link-local addresses. Used for user-supplied URLs.
	BlockPrivateNetworks bool
	Logger               *zap.Logger
}

// Client is a small wrapper around retryablehttp to provide timeouts and UA.
// The last response is always handed back to the caller, even after retries
// are exhausted, so provider error bodies can be inspected.
type Client struct {
	inner     *retryablehttp.Client
	userAgent string
}

// NewClient creates a new Client.
func NewClient(opts ClientOptions) *Client {
	r := retryablehttp.NewClient()
	r.RetryMax = opts.RetryMax
	if opts.RetryWaitMin > 0 {
		r.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		r.RetryWaitMax = opts.RetryWaitMax
	}
	r.HTTPClient.Timeout = opts.Timeout
	r.ErrorHandler = retryablehttp.PassthroughErrorHandler
	r.Backoff = cappedBackoff
	r.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if errors.Is(err, ErrBlockedAddress) {
			return false, err
		}
		retry, cerr := retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		if !retry || cerr != nil {
			return retry, cerr
		}
		// Hand the last response back rather than sleeping past the deadline.
		if deadline, ok := ctx.Deadline(); ok {
			if time.Until(deadline) <= r.Backoff(r.RetryWaitMin, r.RetryWaitMax, 0, resp) {
				return false, nil
			}
		}
		return true, nil
	}
	if opts.BlockPrivateNetworks {
		if t, ok := r.HTTPClient.Transport.(*http.Transport); ok {
			d := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second, Control: refusePrivate}
			t.DialContext = d.DialContext
			t.Proxy = nil
		}
	}
	if opts.Logger != nil {
		r.Logger = logger.Leveled{L: opts.Logger}
	} else {
		r.Logger = nil
	}
	return &Client{inner: r, userAgent: opts.UserAgent}
}

// cappedBackoff is the default backoff with Retry-After clamped to max.
func cappedBackoff(lo, hi time.Duration, attempt int, resp *http.Response) time.Duration {
	return min(retryablehttp.DefaultBackoff(lo, hi, attempt, resp), hi)
}

// Get performs a GET bound to ctx with the configured User-Agent and any
// extra headers.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.inner.Do(req)
}

// StandardClient returns an *http.Client that retries through this client.
func (c *Client) StandardClient() *http.Client {
	return c.inner.StandardClient()
}
