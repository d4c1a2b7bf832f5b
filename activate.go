package ngsw

import (
	"context"

	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/manifest"
	"github.com/pkg/errors"
)

// Activate reacts to the activate event: it promotes whatever manifest
// Install last staged to active, and deletes every cache not named by
// the new manifest's groups — the cleanup step spec.md §4.F requires
// before the new manifest starts serving.
//
// Activate is a no-op, returning an error, if no install is pending.
func (c *Controller) Activate(ctx context.Context) error {
	log := c.log.With().Str("event", "activate").Logger()

	text, ok, err := c.store.Load(ctx, cache.Installing, cache.ManifestURL)
	if err != nil {
		return errors.Wrap(err, "ngsw: load staged manifest")
	}
	if !ok {
		return errors.New("ngsw: activate called with no pending install")
	}

	fresh, err := manifest.Parse(text)
	if err != nil {
		return errors.Wrap(err, "ngsw: parse staged manifest")
	}

	c.mu.Lock()
	c.state.kind = stateActivating
	c.mu.Unlock()

	if err := c.cleanup(ctx, fresh); err != nil {
		return errors.Wrap(err, "ngsw: cleanup stale caches")
	}

	if err := c.store.Store(ctx, cache.Active, cache.ManifestURL, fresh.Text); err != nil {
		return errors.Wrap(err, "ngsw: promote manifest")
	}
	_ = c.store.Remove(ctx, cache.Installing)

	c.mu.Lock()
	c.state = workerState{kind: stateActive, active: fresh}
	c.mu.Unlock()

	log.Info().Int("groups", len(fresh.GroupOrder)).Msg("ngsw: activate complete")
	return nil
}

// cleanup removes every cache the registry knows about that isn't one
// of the new manifest's group caches and isn't one of the two reserved
// manifest-text caches — the set spec.md §4.F calls "unreachable from
// the new manifest".
func (c *Controller) cleanup(ctx context.Context, m *manifest.Manifest) error {
	keep := map[string]bool{
		cache.Active:     true,
		cache.Installing: true,
	}
	for _, name := range m.GroupOrder {
		keep[m.Groups[name].CacheName()] = true
	}

	names, err := c.store.Keys(ctx)
	if err != nil {
		return errors.Wrap(err, "ngsw: list caches")
	}

	for _, name := range names {
		if keep[name] {
			continue
		}
		if err := c.store.Remove(ctx, name); err != nil {
			return errors.Wrapf(err, "ngsw: remove stale cache %q", name)
		}
		c.log.Debug().Str("cache", name).Msg("ngsw: removed stale cache")
	}

	return nil
}
