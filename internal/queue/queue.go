package queue

import (
	"context"
	"errors"
	"fmt"

	"pricescan/internal/models"
)

// ErrJobNotFound means the job id is unknown to the queue (never enqueued,
// or dropped by retention).
var ErrJobNotFound = errors.New("job not found")

// JobID derives the deterministic job identity from the work triple, so
// scheduling the same day twice is a no-op at the queue level.
func JobID(token, network string, ts int64) string {
	return fmt.Sprintf("%s-%s-%d", token, network, ts)
}

// Queue is a durable, ordered work queue with at-least-once delivery and
// idempotent enqueue by job id.
type Queue interface {
	// EnqueueBulk adds the jobs that are not already known and returns the
	// ids of every descriptor passed, known or new, in order.
	EnqueueBulk(ctx context.Context, jobs []models.JobDescriptor) ([]string, error)
	// Dequeue blocks briefly for the next job; (nil, nil) when none arrived.
	Dequeue(ctx context.Context) (*models.JobDescriptor, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id, reason string) error
	// State returns the job's lifecycle state or ErrJobNotFound.
	State(ctx context.Context, id string) (models.JobState, error)
}

// GroupStore keeps the job-id membership list of a backfill group for its
// TTL. Expiry only removes the lookup aid, never the jobs themselves.
type GroupStore interface {
	SaveGroup(ctx context.Context, groupID string, jobIDs []string) error
	// GroupJobIDs returns the ordered member ids, empty when expired/absent.
	GroupJobIDs(ctx context.Context, groupID string) ([]string, error)
}

func groupKey(groupID string) string {
	return "group:" + groupID
}
