package instruction

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/reqres"
)

// FetchFromCache consults a named cache for the request's URL.
type FetchFromCache struct {
	CacheName string
	Request   *http.Request
	Store     cache.Store
}

func (f FetchFromCache) Describe() string {
	return fmt.Sprintf("fetchFromCache(%s, %s)", f.CacheName, f.Request.URL.Path)
}

func (f FetchFromCache) Kind() string { return "fetchFromCache" }

func (f FetchFromCache) Execute(ctx context.Context) (Result, error) {
	body, ok, err := f.Store.Load(ctx, f.CacheName, f.Request.URL.Path)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, nil
	}
	res, err := reqres.DecodeResponse(body)
	if err != nil {
		return Result{}, err
	}
	res.Request = f.Request
	return Result{Response: res}, nil
}
