//go:build integration

package store

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// These tests need a real Redis server; point REDIS_ADDR at one and
// run with -tags integration. Without a reachable server they skip.

func newIntegrationRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client)
}

// testPrefix returns a unique path prefix and registers cleanup of
// everything written under it, so parallel runs never collide.
func testPrefix(t *testing.T, r *Redis) string {
	t.Helper()
	prefix := fmt.Sprintf("it-%d/", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		docs, err := r.List(ctx, prefix)
		if err != nil {
			return
		}
		for path := range docs {
			_ = r.Delete(ctx, path)
		}
	})
	return prefix
}

func TestRedisGetSetDelete(t *testing.T) {
	r := newIntegrationRedis(t)
	prefix := testPrefix(t, r)
	ctx := context.Background()
	path := prefix + "seats/A1"

	if _, err := r.Get(ctx, path); err != ErrNotFound {
		t.Fatalf("Get() on missing record = %v, want ErrNotFound", err)
	}
	if err := r.Set(ctx, path, []byte(`{"available":true}`)); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got, err := r.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !bytes.Equal(got, []byte(`{"available":true}`)) {
		t.Errorf("Get() = %s, want the stored document", got)
	}
	if err := r.Delete(ctx, path); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := r.Get(ctx, path); err != ErrNotFound {
		t.Errorf("Get() after Delete = %v, want ErrNotFound", err)
	}
}

func TestRedisList(t *testing.T) {
	r := newIntegrationRedis(t)
	prefix := testPrefix(t, r)
	ctx := context.Background()

	for _, p := range []string{"seats/A1", "seats/A2", "tickets/t1"} {
		if err := r.Set(ctx, prefix+p, []byte("{}")); err != nil {
			t.Fatalf("Set(%s) error: %v", p, err)
		}
	}
	docs, err := r.List(ctx, prefix+"seats/")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("List() returned %d records, want 2", len(docs))
	}
	if _, ok := docs[prefix+"seats/A1"]; !ok {
		t.Error("List() keys are not full record paths")
	}
}

func TestRedisCompareAndSwap(t *testing.T) {
	r := newIntegrationRedis(t)
	prefix := testPrefix(t, r)
	ctx := context.Background()
	path := prefix + "seats/A1"

	// missing record never matches
	swapped, err := r.CompareAndSwap(ctx, path, []byte("old"), []byte("new"))
	if err != nil {
		t.Fatalf("CompareAndSwap() error: %v", err)
	}
	if swapped {
		t.Fatal("CompareAndSwap() swapped a missing record")
	}

	if err := r.Set(ctx, path, []byte("old")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	swapped, err = r.CompareAndSwap(ctx, path, []byte("other"), []byte("new"))
	if err != nil {
		t.Fatalf("CompareAndSwap() error: %v", err)
	}
	if swapped {
		t.Fatal("CompareAndSwap() swapped on a mismatched expectation")
	}
	swapped, err = r.CompareAndSwap(ctx, path, []byte("old"), []byte("new"))
	if err != nil {
		t.Fatalf("CompareAndSwap() error: %v", err)
	}
	if !swapped {
		t.Fatal("CompareAndSwap() refused a matching swap")
	}
	got, _ := r.Get(ctx, path)
	if !bytes.Equal(got, []byte("new")) {
		t.Errorf("record = %s after swap, want new", got)
	}
}

func TestRedisSetIfAbsent(t *testing.T) {
	r := newIntegrationRedis(t)
	prefix := testPrefix(t, r)
	ctx := context.Background()
	path := prefix + "tickets/t1"

	created, err := r.SetIfAbsent(ctx, path, []byte("a"))
	if err != nil {
		t.Fatalf("SetIfAbsent() error: %v", err)
	}
	if !created {
		t.Fatal("SetIfAbsent() refused to create a missing record")
	}
	created, err = r.SetIfAbsent(ctx, path, []byte("b"))
	if err != nil {
		t.Fatalf("SetIfAbsent() error: %v", err)
	}
	if created {
		t.Fatal("SetIfAbsent() overwrote an existing record")
	}
	got, _ := r.Get(ctx, path)
	if !bytes.Equal(got, []byte("a")) {
		t.Errorf("record = %s, want the first write kept", got)
	}
}

func TestRedisWatch(t *testing.T) {
	r := newIntegrationRedis(t)
	prefix := testPrefix(t, r)
	ctx := context.Background()

	sub, err := r.Watch(ctx, prefix+"seats/")
	if err != nil {
		t.Fatalf("Watch() error: %v", err)
	}
	defer sub.Unsubscribe()

	if err := r.Set(ctx, prefix+"tickets/t1", []byte("x")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if err := r.Set(ctx, prefix+"seats/A1", []byte("y")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	select {
	case ev := <-sub.Events():
		// the tickets/ write must have been filtered out
		if ev.Path != prefix+"seats/A1" || ev.Deleted {
			t.Errorf("event = %+v, want the seats/A1 write", ev)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no event delivered within 3s")
	}
}
