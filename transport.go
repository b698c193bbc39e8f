package hostpool

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// --- Transport ----

// Response is the outcome of one dispatched request. The body is opaque to
// the pool; it is returned to the caller untouched.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Host is the base URL of the endpoint that served the request.
	Host string
}

// Transport performs the actual network call for a resolved URL. The pool
// injects one at construction and never holds its lock across RoundTrip, so
// implementations may block for as long as the context allows.
type Transport interface {
	RoundTrip(ctx context.Context, method, url string, body io.Reader) (*Response, error)
}

// HTTPTransport is the default Transport, backed by net/http.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport returns an HTTPTransport over a dedicated http.Client.
// Per-request deadlines come from the context, not from the client.
func NewHTTPTransport() *HTTPTransport {
	return &HTTPTransport{Client: &http.Client{}}
}

func (t *HTTPTransport) RoundTrip(ctx context.Context, method, url string, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "round trip")
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
	}, nil
}

// joinURL composes the request URL from a host's base URL, a request path and
// optional query parameters.
func joinURL(base, path string, params url.Values) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	if path != "" && !strings.HasPrefix(path, "/") {
		b.WriteString("/")
	}
	b.WriteString(path)
	if len(params) > 0 {
		b.WriteString("?")
		b.WriteString(params.Encode())
	}
	return b.String()
}
