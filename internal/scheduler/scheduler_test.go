package scheduler

import (
	"context"
	"testing"
	"time"

	"pricescan/internal/queue"
)

type fixedGenesis struct{ ts int64 }

func (g fixedGenesis) TokenCreationTime(context.Context, string, string) int64 { return g.ts }

const testToken = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"

func TestScheduleOneJobPerDay(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	q := queue.NewMemoryQueue(false)
	groups := queue.NewMemoryGroupStore(86400 * time.Second)

	s := New(fixedGenesis{ts: now.Unix() - 3*86400}, q, groups)
	s.now = func() time.Time { return now }

	groupID, count, err := s.Schedule(context.Background(), testToken, "ethereum")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if count != 4 {
		t.Fatalf("count=%d, want 4 jobs for days 0..3 inclusive", count)
	}

	ids, err := groups.GroupJobIDs(context.Background(), groupID)
	if err != nil {
		t.Fatalf("GroupJobIDs: %v", err)
	}
	if len(ids) != 4 {
		t.Fatalf("group has %d ids, want 4", len(ids))
	}
	for i, id := range ids {
		want := queue.JobID(testToken, "ethereum", now.Unix()-3*86400+int64(i)*86400)
		if id != want {
			t.Fatalf("ids[%d]=%q, want %q", i, id, want)
		}
	}
}

func TestScheduleTwiceIsIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	q := queue.NewMemoryQueue(false)
	groups := queue.NewMemoryGroupStore(86400 * time.Second)

	s := New(fixedGenesis{ts: now.Unix() - 86400}, q, groups)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	g1, c1, err := s.Schedule(ctx, testToken, "ethereum")
	if err != nil {
		t.Fatalf("first Schedule: %v", err)
	}
	g2, c2, err := s.Schedule(ctx, testToken, "ethereum")
	if err != nil {
		t.Fatalf("second Schedule: %v", err)
	}
	if g1 == g2 {
		t.Fatalf("both schedules share a group id")
	}
	if c1 != 2 || c2 != 2 {
		t.Fatalf("counts=(%d,%d), want 2 each", c1, c2)
	}

	// The queue only holds each day once.
	var drained int
	for {
		job, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if job == nil {
			break
		}
		drained++
	}
	if drained != 2 {
		t.Fatalf("drained=%d jobs, want 2 despite double scheduling", drained)
	}

	// Both groups still reference the shared jobs.
	for _, g := range []string{g1, g2} {
		ids, _ := groups.GroupJobIDs(ctx, g)
		if len(ids) != 2 {
			t.Fatalf("group %s has %d ids, want 2", g, len(ids))
		}
	}
}
