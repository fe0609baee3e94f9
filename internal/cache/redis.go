package cache

import (
    "context"
    "encoding/json"
    "time"

    "github.com/go-redis/redis/v8"
)

// staleRetention is how long an entry stays physically in redis past its
// logical TTL so GetStale can still serve it.
const staleRetention = 24 * time.Hour

// envelope wraps the stored value with its insertion time; logical
// freshness is decided client-side so GetStale keeps working after the
// entry has gone stale.
type envelope[T any] struct {
    Value      T     `json:"v"`
    InsertedAt int64 `json:"at"` // unix milliseconds
}

// Redis is a redis-backed Cache with the same lazy-expiry semantics as TTL.
// Values are stored as JSON envelopes under prefix+key.
type Redis[T any] struct {
    client *redis.Client
    ttl    time.Duration
    prefix string
    now    func() time.Time
}

func NewRedis[T any](client *redis.Client, ttl time.Duration, prefix string) *Redis[T] {
    return &Redis[T]{client: client, ttl: ttl, prefix: prefix, now: time.Now}
}

func (c *Redis[T]) Get(key string) (T, bool) {
    var zero T
    env, ok := c.read(key)
    if !ok { return zero, false }
    if c.now().Sub(time.UnixMilli(env.InsertedAt)) >= c.ttl {
        return zero, false
    }
    return env.Value, true
}

func (c *Redis[T]) GetStale(key string) (T, bool) {
    env, ok := c.read(key)
    if !ok {
        var zero T
        return zero, false
    }
    return env.Value, true
}

func (c *Redis[T]) Put(key string, v T) {
    env := envelope[T]{Value: v, InsertedAt: c.now().UnixMilli()}
    data, err := json.Marshal(env)
    if err != nil { return }
    // best effort: a failed write degrades to a cache miss later
    c.client.Set(context.Background(), c.prefix+key, data, c.ttl+staleRetention)
}

func (c *Redis[T]) read(key string) (envelope[T], bool) {
    var env envelope[T]
    data, err := c.client.Get(context.Background(), c.prefix+key).Bytes()
    if err != nil { return env, false }
    if err := json.Unmarshal(data, &env); err != nil {
        return env, false
    }
    return env, true
}
