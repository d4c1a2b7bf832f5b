package cache

import (
	"context"
	"sync"
)

// MemStore is an in-process registry, adapted from the teacher's
// MemCache: a plain map guarded by a mutex, with no expiration concept
// since the spec's named caches have none.
type MemStore struct {
	mutex *sync.RWMutex
	db    map[string]map[string][]byte
}

// NewMemStore returns an empty in-process registry.
func NewMemStore() *MemStore {
	return &MemStore{
		mutex: &sync.RWMutex{},
		db:    make(map[string]map[string][]byte),
	}
}

func (m *MemStore) Load(_ context.Context, cacheName, url string) ([]byte, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c, ok := m.db[cacheName]
	if !ok {
		return nil, false, nil
	}
	body, ok := c[url]
	if !ok {
		return nil, false, nil
	}
	out, err := decompress(body)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (m *MemStore) Store(_ context.Context, cacheName, url string, body []byte) error {
	compressed, err := compress(body)
	if err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	c, ok := m.db[cacheName]
	if !ok {
		c = make(map[string][]byte)
		m.db[cacheName] = c
	}
	c[url] = compressed
	return nil
}

func (m *MemStore) Keys(_ context.Context) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	keys := make([]string, 0, len(m.db))
	for k := range m.db {
		keys = append(keys, k)
	}
	return keys, nil
}

func (m *MemStore) URLs(_ context.Context, cacheName string) ([]string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	c, ok := m.db[cacheName]
	if !ok {
		return nil, nil
	}
	urls := make([]string, 0, len(c))
	for u := range c {
		urls = append(urls, u)
	}
	return urls, nil
}

func (m *MemStore) Remove(_ context.Context, cacheName string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, cacheName)
	return nil
}
