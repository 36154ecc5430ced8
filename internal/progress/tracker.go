package progress

import (
	"context"
	"errors"
	"fmt"
	"math"

	"pricescan/internal/models"
	"pricescan/internal/queue"
)

// Tracker aggregates the queue states of a group's jobs into a snapshot.
// The tally is eventually consistent: jobs finishing mid-scan show up on
// the next poll.
type Tracker struct {
	queue  queue.Queue
	groups queue.GroupStore
}

func NewTracker(q queue.Queue, groups queue.GroupStore) *Tracker {
	return &Tracker{queue: q, groups: groups}
}

// Progress tallies the group's member jobs. Expired or unknown groups
// report zero totals; member ids the queue no longer knows are skipped.
func (t *Tracker) Progress(ctx context.Context, groupID string) (models.GroupProgress, error) {
	ids, err := t.groups.GroupJobIDs(ctx, groupID)
	if err != nil {
		return models.GroupProgress{}, fmt.Errorf("group lookup: %w", err)
	}

	var p models.GroupProgress
	p.Total = len(ids)
	for _, id := range ids {
		state, err := t.queue.State(ctx, id)
		if errors.Is(err, queue.ErrJobNotFound) {
			continue
		}
		if err != nil {
			return models.GroupProgress{}, fmt.Errorf("job state %s: %w", id, err)
		}
		switch state {
		case models.StateCompleted:
			p.Completed++
		case models.StateFailed:
			p.Failed++
		case models.StateActive:
			p.Active++
		case models.StateWaiting:
			p.Waiting++
		}
	}

	if p.Total > 0 {
		p.Percent = int(math.Round(float64(p.Completed) / float64(p.Total) * 100))
	}
	return p, nil
}
