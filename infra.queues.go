package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// MirrorQueue is the single list carrying every book change so that the
// consumer replays them in the order they were published.
const MirrorQueue = "book.changes"

// MirrorQueues lists every queue drained by the mirror consumer.
var MirrorQueues = []string{MirrorQueue}

// Predefinied kinds of book change.
const (
	CreateEvent  = "creation"
	PatchEvent   = "patching"
	ReplaceEvent = "replacing"
	DeleteEvent  = "deletion"
)

// BookEvent is a book change. The kind tells how the book must be read:
// full record on creation, pk and image on patching, pk and editable
// fields on replacing, pk only on deletion.
type BookEvent struct {
	Kind string `json:"kind"`
	Book Book   `json:"book"`
}

// Ensure *redisQueue implements Queuer.
var _ Queuer = (*redisQueue)(nil)

// Queuer describes a queue of book changes.
type Queuer interface {
	Push(ctx context.Context, qid string, event BookEvent) error
	Pop(ctx context.Context, qids ...string) (string, BookEvent, error)
}

// redisQueue represents a queue backed by redis lists.
type redisQueue struct {
	client *redis.Client
}

func NewRedisQueue(client *redis.Client) Queuer {
	return &redisQueue{client: client}
}

// Push appends a change at the tail of the queue identified by qid.
func (q *redisQueue) Push(ctx context.Context, qid string, event BookEvent) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, qid, eventBytes).Err()
}

// Pop blocks until a change is available on one of the queues and returns it
// along with the queue it came from.
func (q *redisQueue) Pop(ctx context.Context, qids ...string) (string, BookEvent, error) {
	var event BookEvent
	var qid string
	infos, err := q.client.BLPop(ctx, 0*time.Second, qids...).Result()
	if err != nil {
		return qid, event, err
	}

	if err = json.Unmarshal([]byte(infos[1]), &event); err != nil {
		return qid, event, err
	}
	qid = infos[0]
	return qid, event, nil
}
