package instruction

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ngsw-go/ngsw/manifest"
	"github.com/ngsw-go/ngsw/reqres"
)

// Index rewrites a request for "/" to the manifest's configured index
// URL. It yields nothing for any other URL, or when no index is set.
type Index struct {
	Request  *http.Request
	Manifest *manifest.Manifest
}

func (i Index) Describe() string {
	return fmt.Sprintf("index(%s, %s)", i.Request.URL.Path, i.Manifest.Metadata.Index)
}

func (i Index) Kind() string { return "index" }

func (i Index) Execute(ctx context.Context) (Result, error) {
	if i.Request.URL.Path != "/" || i.Manifest.Metadata.Index == "" {
		return Result{}, nil
	}
	return Result{Redirect: reqres.NewRequest(i.Request, i.Manifest.Metadata.Index)}, nil
}
