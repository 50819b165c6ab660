package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

func TestKey(t *testing.T) {
	if got := Key("ref-1"); got != "botlink:owner:ref-1:bots" {
		t.Errorf("Key() = %q", got)
	}
}

func TestRedisRoundTrip(t *testing.T) {
	url := os.Getenv("BOTLINK_TEST_REDIS_URL")
	if url == "" {
		t.Skip("BOTLINK_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, url, time.Minute)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	owner := "test-" + uuid.NewString()
	defer s.rdb.Del(ctx, Key(owner))

	if got, err := s.Load(ctx, owner); err != nil || len(got) != 0 {
		t.Fatalf("Load on miss = %v, %v", got, err)
	}
	if err := s.Save(ctx, owner, []protocol.Binding{{BotID: 7, BotName: "demo_bot"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, owner)
	if err != nil || len(got) != 1 || got[0].BotID != 7 {
		t.Fatalf("Load = %+v, %v", got, err)
	}
	if ttl := s.rdb.TTL(ctx, Key(owner)).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
}
