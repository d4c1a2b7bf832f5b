package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// AferoStore persists the registry as one file per (cacheName, url)
// pair under root, for local development without a database. The url
// is hashed into the filename since it may contain characters the host
// filesystem disallows in a path segment; an "index" sidecar file per
// cache directory maps hashes back to their original URL so URLs can
// still enumerate real URLs rather than hashes.
type AferoStore struct {
	fs   afero.Fs
	root string
}

// NewAferoStore roots a registry at root on fs.
func NewAferoStore(fs afero.Fs, root string) *AferoStore {
	return &AferoStore{fs: fs, root: root}
}

func hashURL(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (a *AferoStore) entryPath(cacheName, url string) string {
	return filepath.Join(a.root, cacheName, hashURL(url))
}

func (a *AferoStore) indexPath(cacheName string) string {
	return filepath.Join(a.root, cacheName, "index")
}

func (a *AferoStore) Load(_ context.Context, cacheName, url string) ([]byte, bool, error) {
	body, err := afero.ReadFile(a.fs, a.entryPath(cacheName, url))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "cache: afero load")
	}
	out, err := decompress(body)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (a *AferoStore) Store(_ context.Context, cacheName, url string, body []byte) error {
	compressed, err := compress(body)
	if err != nil {
		return err
	}
	dir := filepath.Join(a.root, cacheName)
	if err := a.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "cache: afero mkdir")
	}
	if err := afero.WriteFile(a.fs, a.entryPath(cacheName, url), compressed, 0o644); err != nil {
		return errors.Wrap(err, "cache: afero store")
	}
	return errors.Wrap(a.appendIndex(cacheName, url), "cache: afero index")
}

// appendIndex records url in the cache's index file if not already
// present, so URLs can enumerate real URLs instead of content hashes.
func (a *AferoStore) appendIndex(cacheName, url string) error {
	existing, err := a.readIndex(cacheName)
	if err != nil {
		return err
	}
	for _, u := range existing {
		if u == url {
			return nil
		}
	}
	f, err := a.fs.OpenFile(a.indexPath(cacheName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(url + "\n")
	return err
}

func (a *AferoStore) readIndex(cacheName string) ([]string, error) {
	body, err := afero.ReadFile(a.fs, a.indexPath(cacheName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	return lines, nil
}

func (a *AferoStore) Keys(_ context.Context) ([]string, error) {
	entries, err := afero.ReadDir(a.fs, a.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cache: afero keys")
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			keys = append(keys, e.Name())
		}
	}
	return keys, nil
}

func (a *AferoStore) URLs(_ context.Context, cacheName string) ([]string, error) {
	urls, err := a.readIndex(cacheName)
	return urls, errors.Wrap(err, "cache: afero urls")
}

func (a *AferoStore) Remove(_ context.Context, cacheName string) error {
	err := a.fs.RemoveAll(filepath.Join(a.root, cacheName))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "cache: afero remove")
}
