package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"pmsync/internal/models"
)

// Op is the kind of remote write.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Warning reports a write the endpoint did not confirm. The local change is
// kept. Abandoned is set once the write has used up its attempts and was
// dropped from the queue.
type Warning struct {
	Op        Op
	Type      models.EntityType
	ID        string
	Attempt   int
	Abandoned bool
	Err       error
}

func (w Warning) Error() string {
	state := "will retry"
	if w.Abandoned {
		state = "giving up"
	}
	return fmt.Sprintf("%s %s/%s failed (attempt %d, %s): %v", w.Op, w.Type, w.ID, w.Attempt, state, w.Err)
}

func (w Warning) Unwrap() error { return w.Err }

// PendingWrite describes one unconfirmed write.
type PendingWrite struct {
	Op       Op
	Type     models.EntityType
	ID       string
	Attempts int
	Waiting  bool
}

type pendingOp struct {
	op       Op
	entity   models.EntityType
	id       string
	payload  any
	attempts int
}

func (o *pendingOp) key() string {
	return recordKey(o.entity, o.id)
}

func recordKey(t models.EntityType, id string) string {
	return string(t) + "/" + id
}

// recordQueue holds the writes for one record. At most one is in flight.
// A discarded queue belongs to a record that no longer exists locally: its
// in-flight write is allowed to finish but nothing is sent after it.
type recordQueue struct {
	ops       []*pendingOp
	inFlight  bool
	waiting   bool
	discarded bool
}

type confirmer struct {
	ctx         context.Context
	remote      Remote
	maxAttempts int
	logger      *zap.Logger
	onWarning   func(Warning)

	mu       sync.Mutex
	queues   map[string]*recordQueue
	inFlight int
	idle     chan struct{}
}

func newConfirmer(ctx context.Context, remote Remote, maxAttempts int, logger *zap.Logger, onWarning func(Warning)) *confirmer {
	idle := make(chan struct{})
	close(idle)
	return &confirmer{
		ctx:         ctx,
		remote:      remote,
		maxAttempts: maxAttempts,
		logger:      logger,
		onWarning:   onWarning,
		queues:      map[string]*recordQueue{},
		idle:        idle,
	}
}

func (c *confirmer) enqueue(op *pendingOp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := op.key()
	q, ok := c.queues[key]
	if !ok {
		q = &recordQueue{}
		c.queues[key] = q
	}
	q.ops = append(q.ops, op)
	if !q.inFlight && !q.waiting {
		c.startLocked(key, q)
	}
}

func (c *confirmer) startLocked(key string, q *recordQueue) {
	q.inFlight = true
	if c.inFlight == 0 {
		c.idle = make(chan struct{})
	}
	c.inFlight++

	op := q.ops[0]
	go func() {
		err := c.send(op)
		c.finish(key, op, err)
	}()
}

func (c *confirmer) send(op *pendingOp) error {
	switch op.op {
	case OpCreate:
		return c.remote.Create(c.ctx, op.entity, op.payload)
	case OpUpdate:
		return c.remote.Update(c.ctx, op.entity, op.id, op.payload)
	case OpDelete:
		return c.remote.Delete(c.ctx, op.entity, op.id)
	}
	return fmt.Errorf("unknown op %q", op.op)
}

func (c *confirmer) finish(key string, op *pendingOp, err error) {
	var warning *Warning

	c.mu.Lock()
	q := c.queues[key]
	q.inFlight = false

	switch {
	case q.discarded:
		q.ops = nil
		if err != nil {
			c.logger.Debug("dropped write of removed record",
				zap.String("op", string(op.op)), zap.String("key", key), zap.Error(err))
		}
	case err == nil:
		q.ops = q.ops[1:]
	default:
		op.attempts++
		w := Warning{Op: op.op, Type: op.entity, ID: op.id, Attempt: op.attempts, Err: err}
		if op.attempts >= c.maxAttempts {
			w.Abandoned = true
			q.ops = q.ops[1:]
		} else {
			q.waiting = true
		}
		warning = &w
	}

	switch {
	case len(q.ops) == 0:
		delete(c.queues, key)
	case !q.waiting:
		c.startLocked(key, q)
	}
	c.mu.Unlock()

	// Report before going idle so Drain callers observe the warning.
	if warning != nil {
		c.warn(*warning)
	}

	c.mu.Lock()
	c.inFlight--
	if c.inFlight == 0 {
		close(c.idle)
	}
	c.mu.Unlock()
}

func (c *confirmer) warn(w Warning) {
	fields := []zap.Field{
		zap.String("op", string(w.Op)),
		zap.String("type", string(w.Type)),
		zap.String("id", w.ID),
		zap.Int("attempt", w.Attempt),
		zap.Error(w.Err),
	}
	if w.Abandoned {
		c.logger.Error("write abandoned", fields...)
	} else {
		c.logger.Warn("write not confirmed, queued for retry", fields...)
	}
	if c.onWarning != nil {
		c.onWarning(w)
	}
}

func (c *confirmer) retry() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, q := range c.queues {
		if q.waiting && !q.inFlight {
			q.waiting = false
			c.startLocked(key, q)
			n++
		}
	}
	return n
}

// discard drops every queued write of the given records and returns how many
// were dropped. A write already in flight finishes but is never retried.
func (c *confirmer) discard(keys []string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, key := range keys {
		q, ok := c.queues[key]
		if !ok {
			continue
		}
		if q.inFlight {
			n += len(q.ops) - 1
			q.ops = q.ops[:1]
			q.discarded = true
			continue
		}
		n += len(q.ops)
		delete(c.queues, key)
	}
	return n
}

func (c *confirmer) drain(ctx context.Context) error {
	c.mu.Lock()
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *confirmer) pending() []PendingWrite {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []PendingWrite
	for _, q := range c.queues {
		for i, op := range q.ops {
			out = append(out, PendingWrite{
				Op:       op.op,
				Type:     op.entity,
				ID:       op.id,
				Attempts: op.attempts,
				Waiting:  i == 0 && q.waiting,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].ID < out[j].ID
	})
	return out
}
