package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pricescan/internal/models"
)

// RedisQueue is the durable queue backing. Layout per queue name:
//
//	q:<name>:ids     set of known job ids (idempotency)
//	q:<name>:wait    list, LPUSH in / BLMOVE out (FIFO)
//	q:<name>:active  list of in-flight ids
//	q:<name>:job:<id> hash {token, network, timestamp, group, state, error}
type RedisQueue struct {
	rdb  *redis.Client
	name string

	removeOnComplete bool
	dequeueTimeout   time.Duration
}

func NewRedisQueue(rdb *redis.Client, name string, removeOnComplete bool) *RedisQueue {
	return &RedisQueue{
		rdb:              rdb,
		name:             name,
		removeOnComplete: removeOnComplete,
		dequeueTimeout:   5 * time.Second,
	}
}

func (q *RedisQueue) idsKey() string    { return fmt.Sprintf("q:%s:ids", q.name) }
func (q *RedisQueue) waitKey() string   { return fmt.Sprintf("q:%s:wait", q.name) }
func (q *RedisQueue) activeKey() string { return fmt.Sprintf("q:%s:active", q.name) }
func (q *RedisQueue) jobKey(id string) string {
	return fmt.Sprintf("q:%s:job:%s", q.name, id)
}

func (q *RedisQueue) EnqueueBulk(ctx context.Context, jobs []models.JobDescriptor) ([]string, error) {
	ids := make([]string, 0, len(jobs))
	for _, job := range jobs {
		ids = append(ids, job.ID)

		added, err := q.rdb.SAdd(ctx, q.idsKey(), job.ID).Result()
		if err != nil {
			return ids, fmt.Errorf("enqueue %s: %w", job.ID, err)
		}
		if added == 0 {
			// Already known; identical id means identical work.
			continue
		}

		pipe := q.rdb.TxPipeline()
		pipe.HSet(ctx, q.jobKey(job.ID), map[string]interface{}{
			"token":     job.Token,
			"network":   job.Network,
			"timestamp": job.Timestamp,
			"group":     job.GroupID,
			"state":     string(models.StateWaiting),
		})
		pipe.LPush(ctx, q.waitKey(), job.ID)
		if _, err := pipe.Exec(ctx); err != nil {
			return ids, fmt.Errorf("enqueue %s: %w", job.ID, err)
		}
	}
	return ids, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context) (*models.JobDescriptor, error) {
	id, err := q.rdb.BLMove(ctx, q.waitKey(), q.activeKey(), "RIGHT", "LEFT", q.dequeueTimeout).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	fields, err := q.rdb.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("dequeue %s: %w", id, err)
	}
	if len(fields) == 0 {
		// Record dropped under us; nothing to run.
		q.rdb.LRem(ctx, q.activeKey(), 1, id)
		return nil, nil
	}

	if err := q.rdb.HSet(ctx, q.jobKey(id), "state", string(models.StateActive)).Err(); err != nil {
		return nil, fmt.Errorf("dequeue %s: %w", id, err)
	}

	ts, _ := strconv.ParseInt(fields["timestamp"], 10, 64)
	return &models.JobDescriptor{
		ID:        id,
		GroupID:   fields["group"],
		Token:     fields["token"],
		Network:   fields["network"],
		Timestamp: ts,
	}, nil
}

func (q *RedisQueue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, models.StateCompleted, "")
}

func (q *RedisQueue) Fail(ctx context.Context, id, reason string) error {
	return q.finish(ctx, id, models.StateFailed, reason)
}

func (q *RedisQueue) finish(ctx context.Context, id string, state models.JobState, reason string) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.activeKey(), 1, id)
	if q.removeOnComplete {
		pipe.Del(ctx, q.jobKey(id))
		pipe.SRem(ctx, q.idsKey(), id)
	} else {
		fields := map[string]interface{}{"state": string(state)}
		if reason != "" {
			fields["error"] = reason
		}
		pipe.HSet(ctx, q.jobKey(id), fields)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("finish %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) State(ctx context.Context, id string) (models.JobState, error) {
	state, err := q.rdb.HGet(ctx, q.jobKey(id), "state").Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("state %s: %w", id, err)
	}
	return models.JobState(state), nil
}

// RedisGroupStore keeps group membership lists with a TTL.
type RedisGroupStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGroupStore(rdb *redis.Client, ttl time.Duration) *RedisGroupStore {
	return &RedisGroupStore{rdb: rdb, ttl: ttl}
}

func (s *RedisGroupStore) SaveGroup(ctx context.Context, groupID string, jobIDs []string) error {
	if len(jobIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(jobIDs))
	for i, id := range jobIDs {
		members[i] = id
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, groupKey(groupID), members...)
	pipe.Expire(ctx, groupKey(groupID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save group %s: %w", groupID, err)
	}
	return nil
}

func (s *RedisGroupStore) GroupJobIDs(ctx context.Context, groupID string) ([]string, error) {
	ids, err := s.rdb.LRange(ctx, groupKey(groupID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("group %s: %w", groupID, err)
	}
	return ids, nil
}
