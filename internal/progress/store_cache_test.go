package progress_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/p-n-ai/pai-learn/internal/platform/cache"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

func TestCachedStore_FallsThroughWhenCacheDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "localhost:59999",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { client.Close() })

	inner := progress.NewMemoryStore()
	store := progress.NewCachedStore(inner, &cache.Cache{Client: client, Prefix: "test"}, time.Minute)
	ctx := context.Background()

	r := progress.Record{}.With(progress.Path{Course: "C", Topic: "T", SubTopic: "S", Material: "m"}, progress.MarkCompleted)
	if err := store.SaveProgress(ctx, "intern-1", r); err != nil {
		t.Fatalf("SaveProgress() error = %v", err)
	}

	got, err := store.FetchProgress(ctx, "intern-1")
	if err != nil {
		t.Fatalf("FetchProgress() error = %v", err)
	}
	if !got.Material("C", "T", "S", "m").Completed {
		t.Errorf("FetchProgress() = %+v, want m completed from inner store", got)
	}
}

func TestCachedStore_SaveErrorFromInner(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:59999", DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { client.Close() })

	store := progress.NewCachedStore(progress.NewMemoryStore(), &cache.Cache{Client: client}, 0)
	if err := store.SaveProgress(context.Background(), "", progress.Record{}); err == nil {
		t.Error("SaveProgress() should surface the inner store error")
	}
}
