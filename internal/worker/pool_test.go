package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pricescan/internal/models"
	"pricescan/internal/queue"
)

const testToken = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"

// scriptedResolver fails timestamps listed in failAt, resolves the rest.
type scriptedResolver struct {
	mu     sync.Mutex
	failAt map[int64]bool
	seen   []int64
	source models.Source
}

func (r *scriptedResolver) Resolve(_ context.Context, _, _ string, ts int64) (models.Resolution, error) {
	r.mu.Lock()
	r.seen = append(r.seen, ts)
	r.mu.Unlock()
	if r.failAt[ts] {
		return models.Resolution{}, errors.New("no source available")
	}
	source := r.source
	if source == "" {
		source = models.SourceProvider
	}
	return models.Resolution{Price: float64(ts), Source: source}, nil
}

type recordingStore struct {
	mu      sync.Mutex
	upserts []models.PriceRecord
}

func (s *recordingStore) GetPrice(context.Context, string, string, int64) (*models.PriceRecord, error) {
	return nil, nil
}
func (s *recordingStore) NearestBefore(context.Context, string, string, int64) (*models.PriceRecord, error) {
	return nil, nil
}
func (s *recordingStore) NearestAfter(context.Context, string, string, int64) (*models.PriceRecord, error) {
	return nil, nil
}
func (s *recordingStore) UpsertPrice(_ context.Context, rec models.PriceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, rec)
	return nil
}

func enqueueDays(t *testing.T, q queue.Queue, days ...int64) {
	t.Helper()
	var jobs []models.JobDescriptor
	for _, ts := range days {
		jobs = append(jobs, models.JobDescriptor{
			ID:        queue.JobID(testToken, "ethereum", ts),
			GroupID:   "g1",
			Token:     testToken,
			Network:   "ethereum",
			Timestamp: ts,
		})
	}
	if _, err := q.EnqueueBulk(context.Background(), jobs); err != nil {
		t.Fatalf("EnqueueBulk: %v", err)
	}
}

func waitForStates(t *testing.T, q queue.Queue, want map[string]models.JobState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		done := true
		for id, state := range want {
			got, err := q.State(context.Background(), id)
			if err != nil || got != state {
				done = false
				break
			}
		}
		if done {
			return
		}
		if time.Now().After(deadline) {
			for id := range want {
				got, err := q.State(context.Background(), id)
				t.Logf("job %s: state=%v err=%v want=%v", id, got, err, want[id])
			}
			t.Fatalf("jobs did not reach expected terminal states")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPoolCompletesAndFailsJobs(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue(false)
	enqueueDays(t, q, 86400, 172800, 259200)

	resolver := &scriptedResolver{failAt: map[int64]bool{172800: true}}
	pool := NewPool(PoolOptions{
		Queue:         q,
		Resolver:      resolver,
		Concurrency:   2,
		JobsPerSecond: 1000,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	waitForStates(t, q, map[string]models.JobState{
		queue.JobID(testToken, "ethereum", 86400):  models.StateCompleted,
		queue.JobID(testToken, "ethereum", 172800): models.StateFailed,
		queue.JobID(testToken, "ethereum", 259200): models.StateCompleted,
	})

	cancel()
	pool.Wait()
}

func TestPoolPersistsDerivedWhenConfigured(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue(false)
	enqueueDays(t, q, 86400)

	store := &recordingStore{}
	resolver := &scriptedResolver{source: models.SourceInterpolated}
	pool := NewPool(PoolOptions{
		Queue:          q,
		Resolver:       resolver,
		Store:          store,
		Concurrency:    1,
		JobsPerSecond:  1000,
		PersistDerived: true,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	waitForStates(t, q, map[string]models.JobState{
		queue.JobID(testToken, "ethereum", 86400): models.StateCompleted,
	})
	cancel()
	pool.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.upserts) != 1 || store.upserts[0].Timestamp != 86400 {
		t.Fatalf("upserts=%+v, want the derived price persisted once", store.upserts)
	}
}

func TestPoolSkipsDerivedPersistenceByDefault(t *testing.T) {
	t.Parallel()

	q := queue.NewMemoryQueue(false)
	enqueueDays(t, q, 86400)

	store := &recordingStore{}
	resolver := &scriptedResolver{source: models.SourceBeforeOnly}
	pool := NewPool(PoolOptions{
		Queue:         q,
		Resolver:      resolver,
		Store:         store,
		Concurrency:   1,
		JobsPerSecond: 1000,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	waitForStates(t, q, map[string]models.JobState{
		queue.JobID(testToken, "ethereum", 86400): models.StateCompleted,
	})
	cancel()
	pool.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.upserts) != 0 {
		t.Fatalf("derived price persisted without the policy enabled: %+v", store.upserts)
	}
}
