package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/sharebot/core/telegram/netutil"
)

const (
	dialTimeout      = 5 * time.Second
	keepAlive        = 30 * time.Second
	tlsTimeout       = 5 * time.Second
	idleConnTimeout  = 30 * time.Second
	transportRetries = 3
	transportBackoff = 2 * time.Second

	// Long enough for a long-poll round and a 20 MB file download.
	responseTimeout = 75 * time.Second
	clientTimeout   = 2 * time.Minute
)

// BuildHTTPClient returns the client used for Bot API calls and file
// downloads. Requests that fail at the network level are replayed.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: responseTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: &retryTransport{base: base, retries: transportRetries, backoff: transportBackoff},
	}
}

// retryTransport replays a request after transient network errors. HTTP error
// statuses are returned as is; the sender decides about those.
type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.Transient(err); attempt++ {
		next, ok := replay(req)
		if !ok {
			break
		}
		if t.backoff > 0 {
			timer := time.NewTimer(t.backoff * time.Duration(attempt))
			select {
			case <-req.Context().Done():
				timer.Stop()
				return nil, req.Context().Err()
			case <-timer.C:
			}
		}
		resp, err = base.RoundTrip(next)
	}
	return resp, err
}

// replay clones req with a fresh body. Requests whose body cannot be rewound
// are not replayed.
func replay(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}
