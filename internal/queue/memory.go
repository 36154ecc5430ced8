package queue

import (
	"context"
	"sync"
	"time"

	"pricescan/internal/models"
)

type memoryJob struct {
	desc   models.JobDescriptor
	state  models.JobState
	reason string
}

// MemoryQueue implements the Queue contract in-process. Used when no Redis
// is configured, and in tests.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]*memoryJob
	wait []string

	removeOnComplete bool
	pollInterval     time.Duration
}

func NewMemoryQueue(removeOnComplete bool) *MemoryQueue {
	return &MemoryQueue{
		jobs:             make(map[string]*memoryJob),
		removeOnComplete: removeOnComplete,
		pollInterval:     10 * time.Millisecond,
	}
}

func (q *MemoryQueue) EnqueueBulk(_ context.Context, jobs []models.JobDescriptor) ([]string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)
		if _, known := q.jobs[job.ID]; known {
			continue
		}
		q.jobs[job.ID] = &memoryJob{desc: job, state: models.StateWaiting}
		q.wait = append(q.wait, job.ID)
	}
	return ids, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*models.JobDescriptor, error) {
	q.mu.Lock()
	if len(q.wait) > 0 {
		id := q.wait[0]
		q.wait = q.wait[1:]
		job := q.jobs[id]
		job.state = models.StateActive
		desc := job.desc
		q.mu.Unlock()
		return &desc, nil
	}
	q.mu.Unlock()

	// Briefly park instead of spinning, mirroring the blocking pop of the
	// Redis backing.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(q.pollInterval):
		return nil, nil
	}
}

func (q *MemoryQueue) Complete(_ context.Context, id string) error {
	return q.finish(id, models.StateCompleted, "")
}

func (q *MemoryQueue) Fail(_ context.Context, id, reason string) error {
	return q.finish(id, models.StateFailed, reason)
}

func (q *MemoryQueue) finish(id string, state models.JobState, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if q.removeOnComplete {
		delete(q.jobs, id)
		return nil
	}
	job.state = state
	job.reason = reason
	return nil
}

func (q *MemoryQueue) State(_ context.Context, id string) (models.JobState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return "", ErrJobNotFound
	}
	return job.state, nil
}

type memoryGroup struct {
	ids       []string
	expiresAt time.Time
}

// MemoryGroupStore is the in-process GroupStore twin.
type MemoryGroupStore struct {
	mu     sync.Mutex
	groups map[string]memoryGroup
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryGroupStore(ttl time.Duration) *MemoryGroupStore {
	return &MemoryGroupStore{
		groups: make(map[string]memoryGroup),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryGroupStore) SaveGroup(_ context.Context, groupID string, jobIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[groupID] = memoryGroup{
		ids:       append([]string(nil), jobIDs...),
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryGroupStore) GroupJobIDs(_ context.Context, groupID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok || s.now().After(g.expiresAt) {
		return nil, nil
	}
	return append([]string(nil), g.ids...), nil
}
