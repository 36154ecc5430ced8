package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"pricescan/internal/models"
	"pricescan/internal/queue"
)

const day = 86400

// GenesisSource resolves the timestamp a token's history starts at.
type GenesisSource interface {
	TokenCreationTime(ctx context.Context, token, network string) int64
}

// Scheduler fans a token's lifetime out into one backfill job per day and
// records the member ids under a fresh group.
type Scheduler struct {
	genesis GenesisSource
	queue   queue.Queue
	groups  queue.GroupStore

	now func() time.Time
}

func New(genesis GenesisSource, q queue.Queue, groups queue.GroupStore) *Scheduler {
	return &Scheduler{genesis: genesis, queue: q, groups: groups, now: time.Now}
}

// Schedule enqueues one job per day from the token's genesis up to now,
// inclusive, and returns the group id with the job count. Partially
// enqueued batches are not rolled back; rescheduling is idempotent by
// job id.
func (s *Scheduler) Schedule(ctx context.Context, token, network string) (string, int, error) {
	start := s.genesis.TokenCreationTime(ctx, token, network)
	now := s.now().Unix()

	groupID := uuid.NewString()
	var jobs []models.JobDescriptor
	for ts := start; ts <= now; ts += day {
		jobs = append(jobs, models.JobDescriptor{
			ID:        queue.JobID(token, network, ts),
			GroupID:   groupID,
			Token:     token,
			Network:   network,
			Timestamp: ts,
		})
	}

	ids, err := s.queue.EnqueueBulk(ctx, jobs)
	if err != nil {
		return "", 0, fmt.Errorf("enqueue backfill jobs: %w", err)
	}
	if err := s.groups.SaveGroup(ctx, groupID, ids); err != nil {
		return "", 0, fmt.Errorf("save group: %w", err)
	}

	log.Printf("[scheduler] scheduled %d jobs for %s on %s under group %s", len(jobs), token, network, groupID)
	return groupID, len(jobs), nil
}
