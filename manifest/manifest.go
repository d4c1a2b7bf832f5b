// Package manifest parses the versioned snapshot of asset groups that
// drives dispatch, and computes the structural delta between two
// snapshots that the lifecycle controller prefetches against.
package manifest

import (
	"fmt"
	"hash/fnv"
	"net/url"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Metadata carries the manifest-wide keys recognized by the dispatch
// engine. The wire format allows arbitrary additional keys; only these
// two are promoted to typed fields.
type Metadata struct {
	Dev   bool   `yaml:"dev"`
	Index string `yaml:"index"`
}

// Entry is one cacheable URL within a Group. Group is a lookup key, not
// an owning reference — resolve it back through the Manifest.
type Entry struct {
	URL   string
	Hash  string `yaml:"hash"`
	Group string `yaml:"-"`
}

// FallbackEntry rewrites a request whose URL begins with a prefix to a
// different URL before dispatch re-enters the cascade.
type FallbackEntry struct {
	Prefix     string `yaml:"-"`
	FallbackTo string `yaml:"fallbackTo"`
}

// Group is a named bundle of cacheable content versioned as a unit.
type Group struct {
	Name     string                   `yaml:"name" validate:"required"`
	Urls     map[string]entryWire     `yaml:"urls"`
	Fallback map[string]fallbackWire  `yaml:"fallback"`
}

type entryWire struct {
	Hash string `yaml:"hash"`
}

type fallbackWire struct {
	FallbackTo string `yaml:"fallbackTo" validate:"required"`
}

// Manifest is an immutable snapshot of one deployment. It is never
// mutated after Parse returns it; the raw Text is retained for the
// byte-exact comparisons Diff and the cache invariants rely on.
type Manifest struct {
	Metadata   Metadata
	GroupOrder []string
	Groups     map[string]*Group
	Text       []byte
}

type wireManifest struct {
	Metadata map[string]any `yaml:"metadata"`
	Groups   []Group        `yaml:"groups"`
}

var validate = validator.New()

// Parse decodes raw manifest bytes into a Manifest, validates its
// structure, and retains the original bytes for later byte comparison.
// A decode or validation failure is fatal to whatever install attempt
// triggered the parse; the caller is expected to preserve its previous
// active state.
func Parse(text []byte) (*Manifest, error) {
	var wire wireManifest
	if err := yaml.Unmarshal(text, &wire); err != nil {
		return nil, errors.Wrap(err, "manifest: decode")
	}

	m := &Manifest{
		GroupOrder: make([]string, 0, len(wire.Groups)),
		Groups:     make(map[string]*Group, len(wire.Groups)),
		Text:       text,
	}

	if dev, ok := wire.Metadata["dev"]; ok {
		if b, ok := dev.(bool); ok {
			m.Metadata.Dev = b
		}
	}
	if index, ok := wire.Metadata["index"]; ok {
		if s, ok := index.(string); ok {
			m.Metadata.Index = s
		}
	}

	for i := range wire.Groups {
		g := wire.Groups[i]
		if err := validate.Struct(&g); err != nil {
			return nil, errors.Wrapf(err, "manifest: group %q", g.Name)
		}
		if _, dup := m.Groups[g.Name]; dup {
			return nil, errors.Errorf("manifest: duplicate group %q", g.Name)
		}
		for fallbackURL, entry := range g.Fallback {
			if fallbackURL == "" {
				return nil, errors.Errorf("manifest: group %q has an empty fallback prefix", g.Name)
			}
			if err := validate.Struct(&entry); err != nil {
				return nil, errors.Wrapf(err, "manifest: group %q fallback %q", g.Name, fallbackURL)
			}
			if _, err := url.Parse(entry.FallbackTo); err != nil {
				return nil, errors.Wrapf(err, "manifest: group %q fallback target %q", g.Name, entry.FallbackTo)
			}
		}
		gp := g
		m.GroupOrder = append(m.GroupOrder, g.Name)
		m.Groups[g.Name] = &gp
	}

	if m.Metadata.Index != "" {
		if _, err := url.Parse(m.Metadata.Index); err != nil {
			return nil, errors.Wrap(err, "manifest: metadata.index")
		}
	}

	return m, nil
}

// Entries returns the group's URLs as Entry values, group back-reference
// populated, in the map iteration order returned by Go — callers that
// need manifest order should iterate GroupOrder/Groups instead.
func (g *Group) Entries() []Entry {
	entries := make([]Entry, 0, len(g.Urls))
	for u, w := range g.Urls {
		entries = append(entries, Entry{URL: u, Hash: w.Hash, Group: g.Name})
	}
	return entries
}

// Fallbacks returns the group's fallback rules as FallbackEntry values
// with the prefix populated.
func (g *Group) Fallbacks() []FallbackEntry {
	out := make([]FallbackEntry, 0, len(g.Fallback))
	for prefix, w := range g.Fallback {
		out = append(out, FallbackEntry{Prefix: prefix, FallbackTo: w.FallbackTo})
	}
	return out
}

// CacheName derives the stable cache identifier for the group:
// ngsw.cache.<name>.v<fingerprint>. The fingerprint is a hash of the
// group's URL/hash pairs, so two groups with equal contents (even
// across different deployments) resolve to the same cache name and
// reuse the already-populated cache, while a content change produces a
// new name, leaving the old cache eligible for cleanup on activation.
func (g *Group) CacheName() string {
	urls := make([]string, 0, len(g.Urls))
	for u := range g.Urls {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	h := fnv.New64a()
	for _, u := range urls {
		h.Write([]byte(u))
		h.Write([]byte{0})
		h.Write([]byte(g.Urls[u].Hash))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("ngsw.cache.%s.v%x", g.Name, h.Sum64())
}
