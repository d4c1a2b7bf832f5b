package ngsw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/reqres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves canned responses keyed by URL path, and counts
// calls so tests can assert the network was (or wasn't) consulted.
type stubFetcher struct {
	manifest []byte
	bodies   map[string]string
	calls    int
}

func (s *stubFetcher) Request(ctx context.Context, req *http.Request) (*http.Response, error) {
	s.calls++
	if req.URL.Path == cache.ManifestURL {
		return reqres.NewResponseFromBody(string(s.manifest)), nil
	}
	if body, ok := s.bodies[req.URL.Path]; ok {
		return reqres.NewResponseFromBody(body), nil
	}
	return &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found", Header: http.Header{}, Body: http.NoBody}, nil
}

func (s *stubFetcher) Refresh(ctx context.Context, req *http.Request) (*http.Response, error) {
	return s.Request(ctx, req)
}

const v1Manifest = `
metadata:
  index: /index.html
groups:
  - name: app
    urls:
      /index.html:
        hash: h1
      /app.js:
        hash: h1
`

const v2Manifest = `
metadata:
  index: /index.html
groups:
  - name: app
    urls:
      /index.html:
        hash: h2
      /app.js:
        hash: h1
`

func newTestController(fetcher *stubFetcher) *Controller {
	return New(Config{
		Store:   cache.NewMemStore(),
		Fetcher: fetcher,
	})
}

func TestInstallThenActivateServesFromCache(t *testing.T) {
	fetcher := &stubFetcher{
		manifest: []byte(v1Manifest),
		bodies:   map[string]string{"/index.html": "INDEX-V1", "/app.js": "APP-V1"},
	}
	c := newTestController(fetcher)
	ctx := context.Background()

	require.NoError(t, c.Install(ctx))
	require.NoError(t, c.Activate(ctx))

	preFetchCalls := fetcher.calls
	res, err := c.Fetch(ctx, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.NoError(t, err)
	require.NotNil(t, res)

	body, err := reqres.BodyText(res)
	require.NoError(t, err)
	assert.Equal(t, "APP-V1", body)
	assert.Equal(t, preFetchCalls, fetcher.calls, "served from cache, no new network call")
}

func TestFetchBeforeInstallServesNothing(t *testing.T) {
	c := newTestController(&stubFetcher{})
	res, err := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestFetchRewritesRootToIndex(t *testing.T) {
	fetcher := &stubFetcher{
		manifest: []byte(v1Manifest),
		bodies:   map[string]string{"/index.html": "INDEX-V1", "/app.js": "APP-V1"},
	}
	c := newTestController(fetcher)
	ctx := context.Background()
	require.NoError(t, c.Install(ctx))
	require.NoError(t, c.Activate(ctx))

	res, err := c.Fetch(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotNil(t, res)
	body, err := reqres.BodyText(res)
	require.NoError(t, err)
	assert.Equal(t, "INDEX-V1", body)
}

func TestActivateCleansUpStaleGroupCache(t *testing.T) {
	fetcher := &stubFetcher{
		manifest: []byte(v1Manifest),
		bodies:   map[string]string{"/index.html": "INDEX-V1", "/app.js": "APP-V1"},
	}
	c := newTestController(fetcher)
	ctx := context.Background()

	require.NoError(t, c.Install(ctx))
	require.NoError(t, c.Activate(ctx))

	c.mu.RLock()
	oldCacheName := c.state.active.Groups["app"].CacheName()
	c.mu.RUnlock()

	fetcher.manifest = []byte(v2Manifest)
	fetcher.bodies["/index.html"] = "INDEX-V2"

	require.NoError(t, c.Install(ctx))
	require.NoError(t, c.Activate(ctx))

	c.mu.RLock()
	newCacheName := c.state.active.Groups["app"].CacheName()
	c.mu.RUnlock()
	require.NotEqual(t, oldCacheName, newCacheName)

	keys, err := c.store.Keys(ctx)
	require.NoError(t, err)
	assert.NotContains(t, keys, oldCacheName)
	assert.Contains(t, keys, newCacheName)

	// The new cache must hold a response for every URL in the group,
	// including /app.js, whose key (and content) never changed across
	// the two deployments -- not just the URL whose hash changed.
	indexBody, ok, err := c.store.Load(ctx, newCacheName, "/index.html")
	require.NoError(t, err)
	require.True(t, ok, "new cache missing /index.html")
	text, err := reqres.BodyText(mustDecodeResponse(t, indexBody))
	require.NoError(t, err)
	assert.Equal(t, "INDEX-V2", text)

	appBody, ok, err := c.store.Load(ctx, newCacheName, "/app.js")
	require.NoError(t, err)
	require.True(t, ok, "new cache missing /app.js despite its key and content being unchanged")
	text, err = reqres.BodyText(mustDecodeResponse(t, appBody))
	require.NoError(t, err)
	assert.Equal(t, "APP-V1", text)
}

func mustDecodeResponse(t *testing.T, body []byte) *http.Response {
	t.Helper()
	res, err := reqres.DecodeResponse(body)
	require.NoError(t, err)
	return res
}

func TestInstallWithoutActivateLeavesActiveServing(t *testing.T) {
	fetcher := &stubFetcher{
		manifest: []byte(v1Manifest),
		bodies:   map[string]string{"/index.html": "INDEX-V1", "/app.js": "APP-V1"},
	}
	c := newTestController(fetcher)
	ctx := context.Background()
	require.NoError(t, c.Install(ctx))
	require.NoError(t, c.Activate(ctx))

	fetcher.manifest = nil // next install's manifest body decodes to an empty, group-less manifest
	require.NoError(t, c.Install(ctx))

	c.mu.RLock()
	kind := c.state.kind
	c.mu.RUnlock()
	assert.Equal(t, stateInstalling, kind)

	res, err := c.Fetch(ctx, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.NoError(t, err)
	require.NotNil(t, res, "active manifest from v1 still serves despite a no-op empty-manifest install")
}

func TestActivateWithoutPendingInstallErrors(t *testing.T) {
	c := newTestController(&stubFetcher{})
	err := c.Activate(context.Background())
	assert.Error(t, err)
}
