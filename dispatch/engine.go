// Package dispatch composes the ordered instruction cascade for one
// request against the active manifest and executes it lazily,
// returning the first usable response.
package dispatch

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/instruction"
	"github.com/ngsw-go/ngsw/manifest"
	"github.com/ngsw-go/ngsw/netfetch"
	"github.com/rs/zerolog"
)

// Options tunes one dispatch. Timeout, if non-zero, bounds every
// FetchFromNetwork instruction in the cascade.
type Options struct {
	Timeout time.Duration
}

// Engine builds and runs cascades against a cache registry and network
// fetcher. It holds no manifest state of its own — the caller (the
// lifecycle controller) supplies the active manifest on every call, so
// the engine never observes a torn intermediate between installs.
type Engine struct {
	Store   cache.Store
	Fetcher netfetch.Fetcher
	Log     zerolog.Logger
}

type traceIDKey struct{}

// Dispatch resolves req against m and returns the first usable
// response, or nil if the whole cascade is exhausted. A request whose
// resolution recurses through Fallback or Index re-enters Dispatch with
// a fresh cascade built from the rewritten request.
func (e *Engine) Dispatch(ctx context.Context, req *http.Request, m *manifest.Manifest, opts Options) (*http.Response, error) {
	registerMetrics()
	if _, ok := ctx.Value(traceIDKey{}).(uuid.UUID); !ok {
		ctx = context.WithValue(ctx, traceIDKey{}, uuid.New())
		start := time.Now()
		defer func() { dispatchLatency.Observe(time.Since(start).Seconds()) }()
	}
	traceID, _ := ctx.Value(traceIDKey{}).(uuid.UUID)
	log := e.Log.With().Str("traceId", traceID.String()).Str("url", req.URL.Path).Logger()

	for _, instr := range e.buildCascade(req, m, opts) {
		result, err := instr.Execute(ctx)
		instructionsExecuted.WithLabelValues(instr.Kind()).Inc()
		if err != nil {
			log.Error().Err(err).Str("instruction", instr.Describe()).Msg("ngsw: instruction failed")
			continue
		}
		if result.Response != nil {
			log.Trace().Str("instruction", instr.Describe()).Msg("ngsw: resolved")
			dispatchResult.WithLabelValues("hit").Inc()
			return result.Response, nil
		}
		if result.Redirect != nil {
			log.Trace().Str("instruction", instr.Describe()).Str("redirectTo", result.Redirect.URL.Path).Msg("ngsw: redirect")
			return e.Dispatch(ctx, result.Redirect, m, opts)
		}
	}

	log.Trace().Msg("ngsw: cascade exhausted")
	dispatchResult.WithLabelValues("exhausted").Inc()
	return nil, nil
}

// buildCascade produces the ordered instruction sequence of spec.md
// §4.D: dev bypass short-circuit, then index, then one fallback per
// group, then one cache lookup per group, then one network fetch per
// group — all in manifest order.
func (e *Engine) buildCascade(req *http.Request, m *manifest.Manifest, opts Options) []instruction.Instruction {
	if m.Metadata.Dev {
		return []instruction.Instruction{
			instruction.FetchFromNetwork{Request: req, Fetcher: e.Fetcher, Timeout: opts.Timeout},
		}
	}

	cascade := make([]instruction.Instruction, 0, 1+3*len(m.GroupOrder))
	cascade = append(cascade, instruction.Index{Request: req, Manifest: m})

	for _, name := range m.GroupOrder {
		cascade = append(cascade, instruction.Fallback{Request: req, Group: m.Groups[name], Log: e.Log})
	}
	for _, name := range m.GroupOrder {
		g := m.Groups[name]
		cascade = append(cascade, instruction.FetchFromCache{CacheName: g.CacheName(), Request: req, Store: e.Store})
	}
	for range m.GroupOrder {
		cascade = append(cascade, instruction.FetchFromNetwork{Request: req, Fetcher: e.Fetcher, Timeout: opts.Timeout})
	}

	return cascade
}
