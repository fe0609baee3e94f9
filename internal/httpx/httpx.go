package httpx

import (
    "context"
    "net"
    "net/http"
    "time"
)

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
    HTTP      *http.Client
    UserAgent string
    Headers   map[string]string
}

// New builds a Client with a pooled transport. When noProxy is true the
// transport ignores proxy environment variables entirely; flaky corporate
// proxies were the single biggest source of upstream SSL failures.
func New(timeout time.Duration, noProxy bool) *Client {
    transport := &http.Transport{
        Proxy: http.ProxyFromEnvironment,
        DialContext: (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
        MaxIdleConns:          200,
        MaxIdleConnsPerHost:   100,
        MaxConnsPerHost:       100,
        ForceAttemptHTTP2:     true,
        IdleConnTimeout:       90 * time.Second,
        TLSHandshakeTimeout:   3 * time.Second,
        ExpectContinueTimeout: 1 * time.Second,
        ResponseHeaderTimeout: 5 * time.Second,
    }
    if noProxy {
        transport.Proxy = nil
    }
    return &Client{HTTP: &http.Client{Timeout: timeout, Transport: transport}, UserAgent: "coindata/1.0"}
}

func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
    if c.UserAgent != "" && req.Header.Get("User-Agent") == "" {
        req.Header.Set("User-Agent", c.UserAgent)
    }
    for k, v := range c.Headers {
        if req.Header.Get(k) == "" {
            req.Header.Set(k, v)
        }
    }
    return c.HTTP.Do(req)
}

// DoRetry performs the request built by build, retrying transport-level
// failures up to retries extra times. Non-2xx responses are returned as-is;
// only a nil response (connection, TLS, timeout) consumes the budget.
// The request must be rebuilt per attempt because bodies are single-use.
func (c *Client) DoRetry(ctx context.Context, build func() (*http.Request, error), retries int) (*http.Response, error) {
    var lastErr error
    for attempt := 0; attempt <= retries; attempt++ {
        if err := ctx.Err(); err != nil { return nil, err }
        req, err := build()
        if err != nil { return nil, err }
        resp, err := c.Do(ctx, req)
        if err == nil { return resp, nil }
        lastErr = err
    }
    return nil, lastErr
}
