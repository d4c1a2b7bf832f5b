package ngsw

import (
	"context"
	"net/http"

	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/manifest"
	"github.com/pkg/errors"
)

// Fetch reacts to the fetch event: it resolves req against the active
// manifest's instruction cascade. Uninitialized workers lazily load
// whatever manifest is already in the Active cache, matching a service
// worker that restarts mid-session with its caches already populated. A
// worker with no active manifest at all serves nothing — (nil, nil) —
// and the host is expected to fall back to its own network handling.
func (c *Controller) Fetch(ctx context.Context, req *http.Request) (*http.Response, error) {
	m, err := c.activeManifest(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "ngsw: load active manifest")
	}
	if m == nil {
		return nil, nil
	}
	return c.engine.Dispatch(ctx, req, m, c.opts)
}

func (c *Controller) activeManifest(ctx context.Context) (*manifest.Manifest, error) {
	c.mu.RLock()
	if c.state.kind != stateUninitialized {
		m := c.state.active
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	text, ok, err := c.store.Load(ctx, cache.Active, cache.ManifestURL)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.mu.Lock()
		if c.state.kind == stateUninitialized {
			c.state.kind = stateActive
		}
		c.mu.Unlock()
		return nil, nil
	}

	m, err := manifest.Parse(text)
	if err != nil {
		return nil, errors.Wrap(err, "parse cached active manifest")
	}

	c.mu.Lock()
	if c.state.kind == stateUninitialized {
		c.state = workerState{kind: stateActive, active: m}
	}
	active := c.state.active
	c.mu.Unlock()

	return active, nil
}
