package manifest

import (
	"bytes"

	"github.com/pmezard/go-difflib/difflib"
)

// GroupDelta is the per-group added/removed URL set between two
// manifests, plus whether the group's cache name itself changed.
//
// CacheChanged is not derivable from Added/Removed alone: a group whose
// URL set is identical but whose hash on an existing URL changed has
// empty Added/Removed yet a brand-new, currently-empty CacheName. Any
// caller deciding what to (re)fetch into the group's cache must key off
// CacheChanged, not Added — a cache-name change means the whole group
// needs fetching, since nothing has ever been stored under that name.
type GroupDelta struct {
	Added        []string
	Removed      []string
	CacheChanged bool
}

// Delta is the result of comparing two manifests. Changed is false only
// when Previous is non-nil and its text equals Current's byte-for-byte;
// in that case every PerGroup entry is empty and the lifecycle
// controller performs no network fetches.
type Delta struct {
	Current     *Manifest
	CurrentText []byte
	Previous    *Manifest
	Changed     bool
	PerGroup    map[string]GroupDelta
}

// Diff compares fresh against cached (which may be nil, e.g. on first
// install) and produces the structural delta the lifecycle controller
// prefetches against.
func Diff(fresh *Manifest, cached *Manifest) Delta {
	d := Delta{
		Current:     fresh,
		CurrentText: fresh.Text,
		Previous:    cached,
		PerGroup:    make(map[string]GroupDelta, len(fresh.Groups)),
	}

	if cached == nil || !bytes.Equal(fresh.Text, cached.Text) {
		d.Changed = true
	} else {
		// identical text: every group's delta is empty
		for name := range fresh.Groups {
			d.PerGroup[name] = GroupDelta{}
		}
		return d
	}

	seen := make(map[string]bool, len(fresh.Groups))
	for _, name := range fresh.GroupOrder {
		seen[name] = true
		freshGroup := fresh.Groups[name]
		var cachedGroup *Group
		if cached != nil {
			cachedGroup = cached.Groups[name]
		}
		d.PerGroup[name] = diffGroup(freshGroup, cachedGroup)
	}

	if cached != nil {
		for name, cachedGroup := range cached.Groups {
			if seen[name] {
				continue
			}
			// group disappeared in fresh: fully removed
			gd := GroupDelta{}
			for u := range cachedGroup.Urls {
				gd.Removed = append(gd.Removed, u)
			}
			d.PerGroup[name] = gd
		}
	}

	return d
}

func diffGroup(fresh, cached *Group) GroupDelta {
	gd := GroupDelta{}
	var cachedUrls map[string]entryWire
	if cached != nil {
		cachedUrls = cached.Urls
	}
	for u := range fresh.Urls {
		if _, ok := cachedUrls[u]; !ok {
			gd.Added = append(gd.Added, u)
		}
	}
	for u := range cachedUrls {
		if _, ok := fresh.Urls[u]; !ok {
			gd.Removed = append(gd.Removed, u)
		}
	}
	gd.CacheChanged = cached == nil || fresh.CacheName() != cached.CacheName()
	return gd
}

// UnifiedDiff renders a unified text diff between two manifest texts
// for deployment diagnostics. It carries no semantic contract — it is
// never consulted to decide Changed.
func UnifiedDiff(previousText, currentText []byte) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(previousText)),
		B:        difflib.SplitLines(string(currentText)),
		FromFile: "previous",
		ToFile:   "current",
		Context:  2,
	})
}
