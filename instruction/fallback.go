package instruction

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ngsw-go/ngsw/manifest"
	"github.com/ngsw-go/ngsw/reqres"
	"github.com/rs/zerolog"
)

// Fallback examines one group's fallback rules in longest-prefix-first
// order; the first rule whose prefix matches the request, and whose
// target is not the request's own URL, wins. A self-referential target
// is a fallback loop — it is suppressed (with a warning) rather than
// taken, and the search continues with the next matching rule.
type Fallback struct {
	Request *http.Request
	Group   *manifest.Group
	Log     zerolog.Logger
}

func (f Fallback) Describe() string {
	return fmt.Sprintf("fallback(%s, %s)", f.Group.Name, f.Request.URL.Path)
}

func (f Fallback) Kind() string { return "fallback" }

func (f Fallback) Execute(ctx context.Context) (Result, error) {
	path := f.Request.URL.Path
	rules := f.Group.Fallbacks()
	sort.Slice(rules, func(i, j int) bool {
		return len(rules[i].Prefix) > len(rules[j].Prefix)
	})

	for _, rule := range rules {
		if !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		if rule.FallbackTo == path {
			f.Log.Warn().
				Str("group", f.Group.Name).
				Str("prefix", rule.Prefix).
				Str("url", path).
				Msg("ngsw: fallback loop suppressed")
			continue
		}
		return Result{Redirect: reqres.NewRequest(f.Request, rule.FallbackTo)}, nil
	}
	return Result{}, nil
}
