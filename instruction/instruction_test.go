package instruction

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/manifest"
	"github.com/ngsw-go/ngsw/reqres"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReq(path string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	return r
}

func TestFetchFromCacheHit(t *testing.T) {
	store := cache.NewMemStore()
	res := reqres.NewResponseFromBody("INDEX")
	b, err := reqres.EncodeResponse(res)
	require.NoError(t, err)
	require.NoError(t, store.Store(context.Background(), "ngsw.cache.app.v1", "/index.html", b))

	instr := FetchFromCache{CacheName: "ngsw.cache.app.v1", Request: newReq("/index.html"), Store: store}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Response)

	body, err := reqres.BodyText(result.Response)
	require.NoError(t, err)
	assert.Equal(t, "INDEX", body)
}

func TestFetchFromCacheMiss(t *testing.T) {
	store := cache.NewMemStore()
	instr := FetchFromCache{CacheName: "ngsw.cache.app.v1", Request: newReq("/missing.js"), Store: store}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Response)
	assert.Nil(t, result.Redirect)
}

type stubFetcher struct {
	res   *http.Response
	err   error
	delay time.Duration
}

func (s stubFetcher) Request(ctx context.Context, req *http.Request) (*http.Response, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.res, s.err
}

func (s stubFetcher) Refresh(ctx context.Context, req *http.Request) (*http.Response, error) {
	return s.Request(ctx, req)
}

func TestFetchFromNetworkSuccess(t *testing.T) {
	instr := FetchFromNetwork{Request: newReq("/x"), Fetcher: stubFetcher{res: reqres.NewResponseFromBody("OK")}}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Response)
}

func TestFetchFromNetworkErrorYieldsNoValue(t *testing.T) {
	instr := FetchFromNetwork{Request: newReq("/x"), Fetcher: stubFetcher{err: assertErr}}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Response)
}

func TestFetchFromNetworkTimeout(t *testing.T) {
	instr := FetchFromNetwork{
		Request: newReq("/x"),
		Fetcher: stubFetcher{res: reqres.NewResponseFromBody("late"), delay: 50 * time.Millisecond},
		Timeout: 5 * time.Millisecond,
	}
	start := time.Now()
	result, err := instr.Execute(context.Background())
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Nil(t, result.Response)
	assert.Less(t, elapsed, 40*time.Millisecond)
}

var assertErr = assertError{}

type assertError struct{}

func (assertError) Error() string { return "network unreachable" }

func TestIndexRewritesRoot(t *testing.T) {
	m, err := manifest.Parse([]byte("metadata:\n  index: /main.html\n"))
	require.NoError(t, err)

	instr := Index{Request: newReq("/"), Manifest: m}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Redirect)
	assert.Equal(t, "/main.html", result.Redirect.URL.Path)
}

func TestIndexIgnoresOtherPaths(t *testing.T) {
	m, err := manifest.Parse([]byte("metadata:\n  index: /main.html\n"))
	require.NoError(t, err)

	instr := Index{Request: newReq("/other"), Manifest: m}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Redirect)
}

func TestFallbackRewritesMatchingPrefix(t *testing.T) {
	m, err := manifest.Parse([]byte(`
groups:
  - name: app
    urls: {}
    fallback:
      /deep/:
        fallbackTo: /index.html
`))
	require.NoError(t, err)

	instr := Fallback{Request: newReq("/deep/unknown"), Group: m.Groups["app"], Log: zerolog.Nop()}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Redirect)
	assert.Equal(t, "/index.html", result.Redirect.URL.Path)
}

func TestFallbackSuppressesSelfLoop(t *testing.T) {
	m, err := manifest.Parse([]byte(`
groups:
  - name: app
    urls: {}
    fallback:
      /deep/:
        fallbackTo: /deep/unknown
`))
	require.NoError(t, err)

	instr := Fallback{Request: newReq("/deep/unknown"), Group: m.Groups["app"], Log: zerolog.Nop()}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Redirect)
}

func TestFallbackTriesNextRuleAfterLoop(t *testing.T) {
	m, err := manifest.Parse([]byte(`
groups:
  - name: app
    urls: {}
    fallback:
      /deep/unknown:
        fallbackTo: /deep/unknown
      /deep/:
        fallbackTo: /index.html
`))
	require.NoError(t, err)

	instr := Fallback{Request: newReq("/deep/unknown"), Group: m.Groups["app"], Log: zerolog.Nop()}
	result, err := instr.Execute(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Redirect)
	assert.Equal(t, "/index.html", result.Redirect.URL.Path)
}
