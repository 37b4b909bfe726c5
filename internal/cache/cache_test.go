package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/openkaraoke/studio/internal/domain/entities"
	"github.com/openkaraoke/studio/internal/metrics"
)

func TestSongsKeyIsDeterministicAndQuerySensitive(t *testing.T) {
	a := entities.ListSongsOptions{Query: "queen", Limit: 50}
	b := entities.ListSongsOptions{Query: "queen", Limit: 50}
	c := entities.ListSongsOptions{Query: "abba", Limit: 50}

	if songsKey(a) != songsKey(b) {
		t.Fatal("expected identical options to hash to the same key")
	}
	if songsKey(a) == songsKey(c) {
		t.Fatal("expected different query to hash to a different key")
	}
}

func TestArtistsKeyIsNamespacedSeparatelyFromSongs(t *testing.T) {
	opts := entities.ListArtistsOptions{Search: "queen"}
	if artistsKey(opts)[:26] != "openkaraoke:search:artists" {
		t.Fatalf("unexpected artists key prefix: %s", artistsKey(opts))
	}
}

func TestGetMissFallsThroughOnUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond})
	c := New(client, zap.NewNop(), metrics.New())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, ok := c.GetSongs(ctx, entities.ListSongsOptions{})
	if ok {
		t.Fatal("expected a cache miss when redis is unreachable")
	}
}
