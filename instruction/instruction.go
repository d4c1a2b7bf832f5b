// Package instruction implements the four value objects describing one
// atomic resolution attempt: FetchFromCache, FetchFromNetwork,
// Fallback, and Index. Each is pure description — execution happens
// only when the dispatch engine calls Execute.
package instruction

import (
	"context"
	"net/http"
)

// Result is what Execute produces. At most one field is set: Response
// when the instruction resolved the request, Redirect when it rewrote
// the request and the engine should re-enter dispatch with it. Both
// nil means the instruction yielded nothing and the cascade continues.
//
// Redirect is returned rather than the instruction recursing into the
// dispatcher itself — the instruction has no handle to the dispatcher,
// only the engine does, so recursion happens one level up.
type Result struct {
	Response *http.Response
	Redirect *http.Request
}

// Instruction is one atomic resolution attempt.
type Instruction interface {
	// Execute runs the attempt. An error is reserved for conditions the
	// cascade cannot itself recover from; ordinary misses, failures, and
	// timeouts are reported as a zero Result, not an error.
	Execute(ctx context.Context) (Result, error)
	// Describe returns a human-readable diagnostic tag, e.g.
	// "fetchFromCache(ngsw.cache.app.v1, /index.html)".
	Describe() string
	// Kind returns the low-cardinality instruction kind, e.g.
	// "fetchFromCache", for metrics labeling.
	Kind() string
}
