package netutil

import (
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout       = 5 * time.Second
	tlsHandshake      = 5 * time.Second
	idleConnTimeout   = 30 * time.Second
	responseTimeout   = 5 * time.Second
	clientTimeout     = 30 * time.Second
	keepAliveInterval = 30 * time.Second
	retryAttempts     = 3
	retryBackoff      = 2 * time.Second
)

// BuildHTTPClient returns an HTTP client tuned for external API calls.
// Transient network failures are retried transparently inside the transport,
// so callers see at most one error per logical request.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsHandshake,
		ResponseHeaderTimeout: responseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: clientTimeout,
		Transport: &retryTransport{
			next:    base,
			retries: retryAttempts,
			backoff: retryBackoff,
		},
	}
}

// retryTransport re-issues requests that failed with a retryable network
// error. Requests with a non-replayable body are never retried.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}

	var lastErr error
	for attempt := 1; attempt <= t.retries+1; attempt++ {
		curr := req
		if attempt > 1 {
			var err error
			if curr, err = rewind(req); err != nil {
				return nil, err
			}
			if curr == nil {
				return nil, lastErr
			}
		}

		resp, err := next.RoundTrip(curr)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !ShouldRetry(err) || attempt == t.retries+1 {
			break
		}

		if err := sleep(req, t.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// rewind clones the request with a fresh body. It returns nil when the body
// cannot be replayed.
func rewind(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
		return clone, nil
	}
	if req.Body != nil {
		return nil, nil
	}
	return clone, nil
}

func sleep(req *http.Request, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
