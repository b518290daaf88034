package directory

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	qredis "github.com/quantumauth-io/quantum-go-utils/redis"
	"github.com/redis/go-redis/v9"

	"github.com/quantumauth-io/quantum-pay-client/internal/chains"
)

// Entries maps a chain key to the company receiving address on that chain.
type Entries map[chains.Key]string

// Cache stores fetched directories for a TTL.
type Cache interface {
	Get(ctx context.Context, key string) (Entries, bool, error)
	Set(ctx context.Context, key string, e Entries, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type memoryEntry struct {
	entries Entries
	expires time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memoryEntry
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entries, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(it.expires) {
		delete(c.items, key)
		return nil, false, nil
	}
	return copyEntries(it.entries), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, e Entries, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = memoryEntry{entries: copyEntries(e), expires: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	return nil
}

// RedisCache shares the directory between agents through Redis.
// Keys are namespace:key and expire server side.
type RedisCache struct {
	client    redis.UniversalClient
	namespace string
}

func NewRedisCache(client redis.UniversalClient, namespace string) *RedisCache {
	if namespace == "" {
		namespace = "quantumpay:directory"
	}
	return &RedisCache{client: client, namespace: namespace}
}

var ErrNoRedisAddrs = errors.New("directory: no redis address configured")

// DialRedis connects to addrs and pings before returning. More than one
// address selects cluster mode.
func DialRedis(ctx context.Context, addrs []string, password string) (redis.UniversalClient, error) {
	switch len(addrs) {
	case 0:
		return nil, ErrNoRedisAddrs
	case 1:
		host, port, err := net.SplitHostPort(addrs[0])
		if err != nil {
			return nil, errors.Wrapf(err, "redis address %q", addrs[0])
		}
		client, err := qredis.NewClient(ctx, qredis.Config{Host: host, Port: port, Password: password})
		if err != nil {
			return nil, errors.Wrapf(err, "ping redis %s", addrs[0])
		}
		return client, nil
	}

	client := redis.NewClusterClient(&redis.ClusterOptions{Addrs: addrs, Password: password})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis cluster")
	}
	return client, nil
}

func (c *RedisCache) key(k string) string { return c.namespace + ":" + k }

func (c *RedisCache) Get(ctx context.Context, key string) (Entries, bool, error) {
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "redis get directory")
	}
	var e Entries
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, false, errors.Wrap(err, "decode cached directory")
	}
	return e, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, e Entries, ttl time.Duration) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return errors.Wrap(c.client.Set(ctx, c.key(key), b, ttl).Err(), "redis set directory")
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return errors.Wrap(c.client.Del(ctx, c.key(key)).Err(), "redis del directory")
}

func copyEntries(e Entries) Entries {
	out := make(Entries, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
