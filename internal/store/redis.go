package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every record key so the store can share a
// Redis database with the rate limiter.
const keyPrefix = "gate:"

// eventsChannel carries one pub/sub message per write or delete;
// Watch subscriptions are driven from it.
const eventsChannel = "gate:events"

// casScript swaps a key to ARGV[2] only when its current value is
// exactly ARGV[1]. Running the comparison inside Redis makes the
// seat flip a single atomic step, the same trick the rate limiter
// uses for its token bucket.
var casScript = redis.NewScript(`
    local current = redis.call('GET', KEYS[1])
    if current == false or current ~= ARGV[1] then
        return 0
    end
    redis.call('SET', KEYS[1], ARGV[2])
    return 1
`)

// Redis is a Store backed by a Redis server. Change notifications
// ride on a pub/sub channel, so watchers on other processes see
// writes too (at-most-once; pub/sub does not replay).
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an already-connected client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) key(path string) string { return keyPrefix + path }

func (r *Redis) Get(ctx context.Context, path string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.key(path)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, path string, value []byte) error {
	if err := r.client.Set(ctx, r.key(path), value, 0).Err(); err != nil {
		return err
	}
	r.publish(ctx, Event{Path: path, Value: value})
	return nil
}

func (r *Redis) Delete(ctx context.Context, path string) error {
	n, err := r.client.Del(ctx, r.key(path)).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		r.publish(ctx, Event{Path: path, Deleted: true})
	}
	return nil
}

func (r *Redis) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, key := range keys {
		s, ok := vals[i].(string)
		if !ok {
			// key expired between SCAN and MGET
			continue
		}
		out[strings.TrimPrefix(key, keyPrefix)] = []byte(s)
	}
	return out, nil
}

// CompareAndSwap implements Conditional via the Lua script above.
func (r *Redis) CompareAndSwap(ctx context.Context, path string, expect, replace []byte) (bool, error) {
	res, err := casScript.Run(ctx, r.client, []string{r.key(path)}, expect, replace).Int()
	if err != nil {
		return false, err
	}
	if res != 1 {
		return false, nil
	}
	r.publish(ctx, Event{Path: path, Value: replace})
	return true, nil
}

// SetIfAbsent implements Conditional through SETNX.
func (r *Redis) SetIfAbsent(ctx context.Context, path string, value []byte) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(path), value, 0).Result()
	if err != nil {
		return false, err
	}
	if ok {
		r.publish(ctx, Event{Path: path, Value: value})
	}
	return ok, nil
}

// publish is best effort: a lost notification only delays a watcher
// display, it never corrupts record state.
func (r *Redis) publish(ctx context.Context, ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = r.client.Publish(ctx, eventsChannel, body).Err()
}

type redisSub struct {
	pubsub *redis.PubSub
	events chan Event
	once   sync.Once
}

func (s *redisSub) Events() <-chan Event { return s.events }

func (s *redisSub) Unsubscribe() {
	s.once.Do(func() {
		// closing the pubsub ends the forwarding goroutine, which
		// closes the events channel
		_ = s.pubsub.Close()
	})
}

func (r *Redis) Watch(ctx context.Context, prefix string) (Subscription, error) {
	pubsub := r.client.Subscribe(ctx, eventsChannel)
	// force the subscription onto the wire before returning so the
	// caller does not miss events issued right after Watch
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	sub := &redisSub{pubsub: pubsub, events: make(chan Event, watchBuffer)}
	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if !strings.HasPrefix(ev.Path, prefix) {
				continue
			}
			select {
			case sub.events <- ev:
			default:
			}
		}
	}()
	return sub, nil
}
