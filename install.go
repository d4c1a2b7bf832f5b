package ngsw

import (
	"context"
	"net/http"

	"github.com/ngsw-go/ngsw/cache"
	"github.com/ngsw-go/ngsw/manifest"
	"github.com/ngsw-go/ngsw/reqres"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Install reacts to the install event: it fetches the manifest over the
// network, diffs it against whatever is currently active, and prefetches
// every group whose cache name changed into its (currently empty) cache.
// On any failure the previous active state is left untouched — a failed
// install never regresses the worker.
//
// Install does not activate the fetched manifest; Activate does, on a
// separate call, per the install/activate split of spec.md §4.
func (c *Controller) Install(ctx context.Context) error {
	log := c.log.With().Str("event", "install").Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cache.ManifestURL, nil)
	if err != nil {
		return errors.Wrap(err, "ngsw: build manifest request")
	}

	res, err := c.fetcher.Refresh(ctx, req)
	if err != nil {
		return errors.Wrap(err, "ngsw: fetch manifest")
	}
	if !reqres.Ok(res) {
		return errors.New("ngsw: manifest fetch returned non-ok status")
	}

	text, err := bodyBytes(res)
	if err != nil {
		return errors.Wrap(err, "ngsw: read manifest body")
	}

	fresh, err := manifest.Parse(text)
	if err != nil {
		return errors.Wrap(err, "ngsw: parse manifest")
	}

	c.mu.RLock()
	previous := c.state.active
	c.mu.RUnlock()

	delta := manifest.Diff(fresh, previous)
	if !delta.Changed {
		log.Debug().Msg("ngsw: manifest unchanged, nothing to install")
		return nil
	}

	if previous != nil {
		if diffText, err := manifest.UnifiedDiff(previous.Text, fresh.Text); err == nil {
			log.Debug().Str("diff", diffText).Msg("ngsw: manifest changed")
		}
	}

	if err := c.prefetch(ctx, fresh, delta); err != nil {
		return errors.Wrap(err, "ngsw: prefetch")
	}

	if err := c.store.Store(ctx, cache.Installing, cache.ManifestURL, fresh.Text); err != nil {
		return errors.Wrap(err, "ngsw: stage manifest")
	}

	c.mu.Lock()
	c.state = workerState{kind: stateInstalling, active: previous, installing: fresh}
	c.mu.Unlock()

	log.Info().Int("groups", len(fresh.GroupOrder)).Msg("ngsw: install complete")
	return nil
}

// prefetch populates, one group at a time concurrently, the cache of
// every group whose CacheName changed from what's currently active. A
// changed CacheName means the cache it names has never been populated —
// including when only a URL's hash changed with the URL set otherwise
// identical — so the whole group's URL set is fetched, not just the
// URLs delta.PerGroup marks as added; a narrower fetch would leave the
// new cache missing responses for URLs whose key didn't change. A group
// whose prefetch fails aborts the whole install — a partially populated
// cache is never promoted to installing.
func (c *Controller) prefetch(ctx context.Context, m *manifest.Manifest, delta manifest.Delta) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, name := range m.GroupOrder {
		name := name
		group := m.Groups[name]
		if !delta.PerGroup[name].CacheChanged {
			continue
		}

		g.Go(func() error {
			cacheName := group.CacheName()
			for _, entry := range group.Entries() {
				req, err := http.NewRequestWithContext(gctx, http.MethodGet, entry.URL, nil)
				if err != nil {
					return errors.Wrapf(err, "ngsw: build request for %s", entry.URL)
				}
				res, err := c.fetcher.Request(gctx, req)
				if err != nil {
					return errors.Wrapf(err, "ngsw: fetch %s", entry.URL)
				}
				if !reqres.Ok(res) {
					return errors.Errorf("ngsw: fetch %s returned non-ok status", entry.URL)
				}
				body, err := reqres.EncodeResponse(res)
				if err != nil {
					return errors.Wrapf(err, "ngsw: encode response for %s", entry.URL)
				}
				if err := c.store.Store(gctx, cacheName, entry.URL, body); err != nil {
					return errors.Wrapf(err, "ngsw: store %s", entry.URL)
				}
			}
			return nil
		})
	}

	return g.Wait()
}

func bodyBytes(res *http.Response) ([]byte, error) {
	text, err := reqres.BodyText(res)
	return []byte(text), err
}
