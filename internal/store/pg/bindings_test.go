package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/botlink/pkg/protocol"
)

func TestPostgresRoundTrip(t *testing.T) {
	dsn := os.Getenv("BOTLINK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BOTLINK_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, time.Hour)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	owner := "test-" + uuid.NewString()
	t.Cleanup(func() { s.db.Exec(`DELETE FROM binding_cache WHERE owner = $1`, owner) })

	if got, err := s.Load(ctx, owner); err != nil || len(got) != 0 {
		t.Fatalf("miss = %+v, %v", got, err)
	}
	for _, id := range []int64{1, 2} {
		if err := s.Save(ctx, owner, []protocol.Binding{{BotID: id, BotName: "demo_bot"}}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	got, err := s.Load(ctx, owner)
	if err != nil || len(got) != 1 || got[0].BotID != 2 {
		t.Errorf("Load = %+v, %v", got, err)
	}
}
