// Package ngsw is the control core of a browser-resident offline cache
// running inside a service-worker runtime: it dispatches every request
// through a versioned manifest's instruction cascade, and drives the
// install/activate/fetch lifecycle across successive deployments.
package ngsw

import (
	"sync"
	"time"

	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/dispatch"
	"github.com/ngsw-go/ngsw/netfetch"
	"github.com/rs/zerolog"
)

// Config wires a Controller's collaborators. Store and Fetcher are
// required; Logger defaults to a new zerolog logger writing to a
// console writer if nil, matching the teacher's own CreateCache default.
type Config struct {
	// Store is the named-cache registry backing both the manifest
	// caches and every group's content cache.
	Store cache.Store
	// Fetcher issues the manifest and content network fetches.
	Fetcher netfetch.Fetcher
	// Logger is the base logger; a "component":"ngsw" child is derived
	// from it.
	Logger *zerolog.Logger
	// DispatchTimeout bounds every FetchFromNetwork instruction within
	// a fetch dispatch. Zero means no timeout.
	DispatchTimeout time.Duration
}

// Controller is the lifecycle controller: it owns the install/activate/
// fetch event reactions and the single in-memory cell holding the
// active (and, mid-deployment, installing) manifest.
type Controller struct {
	mu      sync.RWMutex
	state   workerState
	store   cache.Store
	fetcher netfetch.Fetcher
	engine  *dispatch.Engine
	log     zerolog.Logger
	opts    dispatch.Options
}

// New constructs a Controller. It performs no I/O — the worker starts
// Uninitialized and lazily loads the active manifest on the first
// Fetch, per spec's cold-start rule.
func New(cfg Config) *Controller {
	var logger zerolog.Logger
	if cfg.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *cfg.Logger
	}
	logger = logger.With().Str("component", "ngsw").Logger()

	return &Controller{
		store:   cfg.Store,
		fetcher: cfg.Fetcher,
		log:     logger,
		engine: &dispatch.Engine{
			Store:   cfg.Store,
			Fetcher: cfg.Fetcher,
			Log:     logger,
		},
		opts: dispatch.Options{Timeout: cfg.DispatchTimeout},
	}
}

// ActiveManifestText returns the byte-exact text of the currently
// active manifest, for diagnostics and tests; ok is false while
// Uninitialized.
func (c *Controller) ActiveManifestText() (text []byte, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state.active == nil {
		return nil, false
	}
	return c.state.active.Text, true
}
