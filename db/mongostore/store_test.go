package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/db/service"
)

// These tests need a running MongoDB; set MONGO_TEST_URI to enable them.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set")
	}

	ctx := context.Background()
	name := fmt.Sprintf("board_collector_test_%d", time.Now().UnixNano())
	s, err := New(ctx, uri, name)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		s.database.Drop(context.Background())
		s.Close()
	})
	return s
}

func TestStore_ImageDedup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	svc := service.NewImageService(s.Images(), 5, 2)
	hash := "0000000000000000000000000000000000000000000000000000000000000000"
	near := "1110000000000000000000000000000000000000000000000000000000000000"

	first, err := svc.SaveNew(ctx, hash, "1.jpg")
	if err != nil {
		t.Fatalf("SaveNew: %v", err)
	}

	m, err := svc.FindNearDuplicate(ctx, near)
	if err != nil {
		t.Fatalf("FindNearDuplicate: %v", err)
	}
	if m == nil || m.Entry.ID != first.ID {
		t.Fatalf("match=%+v, want entry %d", m, first.ID)
	}

	updated, err := svc.RecordDuplicate(ctx, first.ID)
	if err != nil {
		t.Fatalf("RecordDuplicate: %v", err)
	}
	if updated.TotalEncounters != 2 {
		t.Fatalf("TotalEncounters=%d, want 2", updated.TotalEncounters)
	}

	if err := svc.Remove(ctx, first.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n, _ := svc.Encounters(ctx, first.ID); n != 0 {
		t.Fatalf("orphan encounters=%d", n)
	}
}

func TestStore_Statistics(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stat := &models.PostStatistic{NewThreads: 1, NewReplies: 2, Date: time.Now()}
	if err := s.Statistics().Create(ctx, stat); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if stat.NewPosts != 3 || stat.ID == 0 {
		t.Fatalf("stat=%+v", stat)
	}

	stats, err := s.Statistics().Since(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("Since: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("len=%d, want 1", len(stats))
	}
}
