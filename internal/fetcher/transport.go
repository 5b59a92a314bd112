package fetcher

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/publicsuffix"
)

// headerTransport injects fixed headers into every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// NewClient returns an HTTP client with a cookie jar so that cookies set by
// the playlist response are replayed on segment requests.
func NewClient(cfg Config) *http.Client {
	cfg = cfg.normalize()
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	headers := map[string]string{
		"User-Agent":      cfg.UserAgent,
		"Accept-Encoding": "br, gzip",
	}
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.MaxIdleConnsPerHost = cfg.Concurrency
	return &http.Client{
		Timeout:   cfg.Timeout,
		Jar:       jar,
		Transport: &headerTransport{headers: headers, base: base},
	}
}

// decodeBody wraps resp.Body according to its Content-Encoding. Requesting
// encodings explicitly disables the transport's transparent gzip handling,
// so both br and gzip are decoded here.
func decodeBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		return gzip.NewReader(resp.Body)
	default:
		return resp.Body, nil
	}
}
