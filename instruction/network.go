package instruction

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ngsw-go/ngsw/netfetch"
)

// FetchFromNetwork issues a network fetch. If BypassHTTPCache is set,
// the request is forced to revalidate rather than reuse the platform's
// HTTP cache. If Timeout is non-zero, whichever of (response, timeout)
// arrives first wins — a timeout yields no value and contributes
// nothing to the cascade. Network errors likewise yield no value.
type FetchFromNetwork struct {
	Request         *http.Request
	Fetcher         netfetch.Fetcher
	BypassHTTPCache bool
	Timeout         time.Duration
}

func (f FetchFromNetwork) Describe() string {
	return fmt.Sprintf("fetchFromNetwork(%s)", f.Request.URL.Path)
}

func (f FetchFromNetwork) Kind() string { return "fetchFromNetwork" }

func (f FetchFromNetwork) Execute(ctx context.Context) (Result, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	fetch := f.Fetcher.Request
	if f.BypassHTTPCache {
		fetch = f.Fetcher.Refresh
	}

	type outcome struct {
		res *http.Response
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := fetch(ctx, f.Request)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil || o.res == nil {
			return Result{}, nil
		}
		return Result{Response: o.res}, nil
	case <-ctx.Done():
		return Result{}, nil
	}
}
