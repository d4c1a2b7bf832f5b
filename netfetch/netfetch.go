// Package netfetch implements the network fetcher spec.md §6 declares
// as consumed: a normal request that lets the platform's HTTP cache
// participate, and a refresh that forces revalidation. The dispatch
// engine depends only on the Fetcher interface; this package supplies
// the concrete net/http-backed implementation a real host plugs in,
// grounded on the teacher's own httputil.ReverseProxy/http.Client use.
package netfetch

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
)

// Fetcher is the network fetcher the dispatch engine consumes.
type Fetcher interface {
	// Request issues a normal HTTP request; the platform's HTTP cache
	// (if any) may participate.
	Request(ctx context.Context, req *http.Request) (*http.Response, error)
	// Refresh forces a revalidation/no-store request.
	Refresh(ctx context.Context, req *http.Request) (*http.Response, error)
}

// HTTPFetcher issues real requests with http.Client.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a Fetcher using client, or a default client
// with redirects disabled (matching the teacher's own reverse-proxy
// transport, which never follows redirects on the cache's behalf) if
// client is nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) Request(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f.do(ctx, req, false)
}

func (f *HTTPFetcher) Refresh(ctx context.Context, req *http.Request) (*http.Response, error) {
	return f.do(ctx, req, true)
}

func (f *HTTPFetcher) do(ctx context.Context, req *http.Request, bypassHTTPCache bool) (*http.Response, error) {
	clone := req.Clone(ctx)
	if bypassHTTPCache {
		clone.Header.Set("Cache-Control", "no-store")
		clone.Header.Set("Pragma", "no-cache")
	}
	res, err := f.Client.Do(clone)
	if err != nil {
		return nil, errors.Wrap(err, "netfetch: request")
	}
	return res, nil
}
