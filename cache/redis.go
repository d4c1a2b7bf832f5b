package cache

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore backs the registry with a shared Redis instance, for a
// host that runs as a fleet of worker processes rather than one
// browser tab. Keys are "ngsw:entry:<cacheName>\x00<url>"; a set per cache name
// tracks membership so Keys/URLs/Remove don't need a key-space scan.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured redis.Client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func cacheSetKey(cacheName string) string {
	return "ngsw:set:" + cacheName
}

func entryKey(cacheName, url string) string {
	return "ngsw:entry:" + cacheName + "\x00" + url
}

func (r *RedisStore) Load(ctx context.Context, cacheName, url string) ([]byte, bool, error) {
	body, err := r.client.Get(ctx, entryKey(cacheName, url)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "cache: redis load")
	}
	out, err := decompress(body)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (r *RedisStore) Store(ctx context.Context, cacheName, url string, body []byte) error {
	compressed, err := compress(body)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, entryKey(cacheName, url), compressed, 0)
	pipe.SAdd(ctx, cacheSetKey(cacheName), url)
	pipe.SAdd(ctx, "ngsw:caches", cacheName)
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "cache: redis store")
}

func (r *RedisStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.client.SMembers(ctx, "ngsw:caches").Result()
	return keys, errors.Wrap(err, "cache: redis keys")
}

func (r *RedisStore) URLs(ctx context.Context, cacheName string) ([]string, error) {
	urls, err := r.client.SMembers(ctx, cacheSetKey(cacheName)).Result()
	return urls, errors.Wrap(err, "cache: redis urls")
}

func (r *RedisStore) Remove(ctx context.Context, cacheName string) error {
	urls, err := r.URLs(ctx, cacheName)
	if err != nil {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, u := range urls {
		pipe.Del(ctx, entryKey(cacheName, u))
	}
	pipe.Del(ctx, cacheSetKey(cacheName))
	pipe.SRem(ctx, "ngsw:caches", cacheName)
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "cache: redis remove")
}
