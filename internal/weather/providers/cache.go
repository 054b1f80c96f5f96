package providers

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// NewCachingClient returns an HTTP client whose successful GET responses are
// served from memory for ttl. A ttl <= 0 disables caching.
func NewCachingClient(timeout, ttl time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: NewCachingTransport(http.DefaultTransport, ttl),
	}
}

// maxCachedResponses bounds memory; the recorder only ever requests one URL.
const maxCachedResponses = 64

type cacheEntry struct {
	status int
	header http.Header
	body   []byte
}

// CachingTransport is an http.RoundTripper keyed by request URL.
type CachingTransport struct {
	next    http.RoundTripper
	ttl     time.Duration
	entries *ttlcache.Cache[string, cacheEntry]
}

func NewCachingTransport(next http.RoundTripper, ttl time.Duration) *CachingTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &CachingTransport{
		next: next,
		ttl:  ttl,
		// Hits must not extend the entry's lifetime.
		entries: ttlcache.New[string, cacheEntry](
			ttlcache.WithTTL[string, cacheEntry](ttl),
			ttlcache.WithCapacity[string, cacheEntry](maxCachedResponses),
			ttlcache.WithDisableTouchOnHit[string, cacheEntry](),
		),
	}
}

func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.ttl <= 0 || req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}

	key := req.URL.String()
	if item := t.entries.Get(key); item != nil {
		return item.Value().response(req), nil
	}

	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		return resp, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	t.entries.DeleteExpired()
	t.entries.Set(key, cacheEntry{
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		body:   body,
	}, ttlcache.DefaultTTL)

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (e cacheEntry) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", e.status, http.StatusText(e.status)),
		StatusCode:    e.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Request:       req,
	}
}
