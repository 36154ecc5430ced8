package models

// Source identifies which resolution tier produced a price.
type Source string

const (
	SourceCache        Source = "cache"
	SourceProvider     Source = "provider"
	SourceInterpolated Source = "interpolated"
	SourceBeforeOnly   Source = "before-only"
	SourceAfterOnly    Source = "after-only"
)

// Derived reports whether the source is a computed fallback rather than
// provider-confirmed data.
func (s Source) Derived() bool {
	switch s {
	case SourceInterpolated, SourceBeforeOnly, SourceAfterOnly:
		return true
	}
	return false
}

// PriceRecord is one persisted price point. (Token, Network, Timestamp) is
// unique in the store; writes upsert.
type PriceRecord struct {
	Token     string  `json:"token"`
	Network   string  `json:"network"`
	Timestamp int64   `json:"timestamp"` // unix seconds, day-aligned
	Price     float64 `json:"price"`
}

// Resolution is the outcome of a successful price lookup.
type Resolution struct {
	Price  float64 `json:"price"`
	Source Source  `json:"source"`
}

// JobState is the queue-owned lifecycle state of a backfill job.
type JobState string

const (
	StateWaiting   JobState = "waiting"
	StateActive    JobState = "active"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
)

// JobDescriptor is one backfill unit of work: fetch the price of a token on
// a network for a single day. The ID is derived from the triple so that
// re-scheduling the same range enqueues nothing new.
type JobDescriptor struct {
	ID        string `json:"id"`
	GroupID   string `json:"groupId"`
	Token     string `json:"token"`
	Network   string `json:"network"`
	Timestamp int64  `json:"timestamp"`
}

// GroupProgress is a point-in-time tally of the jobs belonging to one
// backfill group.
type GroupProgress struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Active    int `json:"active"`
	Waiting   int `json:"waiting"`
	Total     int `json:"total"`
	Percent   int `json:"percent"`
}
