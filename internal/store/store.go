// Package store owns the in-memory snapshot of every project collection and
// the signed-in user. Mutations are applied to the snapshot immediately and
// confirmed with the remote endpoint in the background.
//
// Confirmation failures never undo local state: the change stays visible, a
// Warning is reported and the write is retried until it succeeds or runs out
// of attempts. Writes to the same record are confirmed one at a time in the
// order they were made.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pmsync/internal/models"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrValidation = models.ErrInvalidField
	ErrClosed     = errors.New("store closed")

	errUnchanged = errors.New("unchanged")
)

// Remote is the persistence endpoint the store confirms writes with.
type Remote interface {
	Load(ctx context.Context) (models.Collections, error)
	Create(ctx context.Context, t models.EntityType, record any) error
	Update(ctx context.Context, t models.EntityType, id string, patch any) error
	Delete(ctx context.Context, t models.EntityType, id string) error
}

// Session supplies the signed-in user, if any.
type Session interface {
	CurrentUser(ctx context.Context) *models.User
}

// LoadStatus tells observers whether data is available.
type LoadStatus int

const (
	StatusIdle LoadStatus = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	}
	return "idle"
}

// Snapshot is an immutable view of the store. A new value is published for
// every change, so pointer or Version comparison detects updates. Callers
// must not modify the slices.
type Snapshot struct {
	Version        uint64
	Status         LoadStatus
	LoadErr        error
	Projects       []models.Project
	Tasks          []models.Task
	Meetings       []models.Meeting
	Documents      []models.Document
	SocialContents []models.SocialContent
	CurrentUser    *models.User
}

// Options tune a Store. Zero values pick sensible defaults.
type Options struct {
	Logger  *zap.Logger
	Session Session
	// OnWarning is called from a background goroutine whenever a write
	// could not be confirmed. It must not block for long.
	OnWarning func(Warning)
	// MaxAttempts bounds how often one write is sent before it is dropped.
	MaxAttempts int
	// RetryInterval schedules the retry sweep. Zero disables it; Retry can
	// still be called by hand.
	RetryInterval time.Duration
	// NewID overrides id generation.
	NewID func(models.EntityType) string
}

// Store is safe for concurrent use. Mutations are serialized.
type Store struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]

	subMu  sync.Mutex
	subs   map[int]chan *Snapshot
	nextID int

	remote  Remote
	session Session
	newID   func(models.EntityType) string
	logger  *zap.Logger

	// loadTouched collects the records changed locally while a Load is
	// running. It is nil otherwise and guarded by mu.
	loadTouched map[string]bool

	confirm *confirmer
	cron    *cron.Cron
	cancel  context.CancelFunc
	closed  atomic.Bool
}

// New creates an empty store backed by remote. Call Load to fetch data.
func New(remote Remote, opts Options) (*Store, error) {
	if remote == nil {
		return nil, fmt.Errorf("store: nil remote")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")

	newID := opts.NewID
	if newID == nil {
		newID = defaultID
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 5
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		subs:    map[int]chan *Snapshot{},
		remote:  remote,
		session: opts.Session,
		newID:   newID,
		logger:  logger,
		cancel:  cancel,
	}
	s.confirm = newConfirmer(ctx, remote, attempts, logger, opts.OnWarning)
	s.current.Store(&Snapshot{
		Projects:       []models.Project{},
		Tasks:          []models.Task{},
		Meetings:       []models.Meeting{},
		Documents:      []models.Document{},
		SocialContents: []models.SocialContent{},
	})

	if opts.RetryInterval > 0 {
		s.cron = cron.New()
		if _, err := s.cron.AddFunc("@every "+opts.RetryInterval.String(), func() {
			if n := s.Retry(); n > 0 {
				s.logger.Info("retrying unconfirmed writes", zap.Int("records", n))
			}
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule retries: %w", err)
		}
		s.cron.Start()
	}
	return s, nil
}

func defaultID(t models.EntityType) string {
	return t.Prefix() + "-" + uuid.NewString()
}

// Snapshot returns the latest published snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow readers only ever see the newest value. The returned func
// unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan *Snapshot, func()) {
	ch := make(chan *Snapshot, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Store) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	snap := s.current.Load()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

// mutate applies fn to a copy of the current snapshot, publishes the result
// and queues the returned op for confirmation. fn must replace, never modify,
// the slices it changes.
func (s *Store) mutate(fn func(next *Snapshot) (*pendingOp, error)) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	cur := s.current.Load()
	next := *cur
	op, err := fn(&next)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	next.Version = cur.Version + 1
	s.current.Store(&next)
	if op != nil {
		s.touchLocked(op.key())
		s.confirm.enqueue(op)
	}
	s.mu.Unlock()

	s.publish()
	return nil
}

func (s *Store) touchLocked(keys ...string) {
	if s.loadTouched == nil {
		return
	}
	for _, k := range keys {
		s.loadTouched[k] = true
	}
}

// Load fetches all collections from the endpoint and attaches the session
// user. On failure the published snapshot carries StatusFailed and the error.
//
// Mutations stay allowed while loading. Records changed locally in the
// meantime keep their local state, present or removed; every other record
// comes from the endpoint.
func (s *Store) Load(ctx context.Context) error {
	if err := s.mutate(func(next *Snapshot) (*pendingOp, error) {
		next.Status = StatusLoading
		next.LoadErr = nil
		s.loadTouched = map[string]bool{}
		return nil, nil
	}); err != nil {
		return err
	}

	cols, err := s.remote.Load(ctx)
	if err != nil {
		s.logger.Error("initial load failed", zap.Error(err))
		_ = s.mutate(func(next *Snapshot) (*pendingOp, error) {
			next.Status = StatusFailed
			next.LoadErr = err
			s.loadTouched = nil
			return nil, nil
		})
		return fmt.Errorf("load: %w", err)
	}
	cols = cols.Normalize()

	var user *models.User
	if s.session != nil {
		user = s.session.CurrentUser(ctx)
	}

	s.logger.Info("data loaded",
		zap.Int("projects", len(cols.Projects)),
		zap.Int("tasks", len(cols.Tasks)),
		zap.Int("meetings", len(cols.Meetings)),
		zap.Int("documents", len(cols.Documents)),
		zap.Int("socialContents", len(cols.SocialContents)))

	return s.mutate(func(next *Snapshot) (*pendingOp, error) {
		touched := s.loadTouched
		s.loadTouched = nil
		next.Status = StatusReady
		next.LoadErr = nil
		next.Projects = mergeLoaded(cols.Projects, next.Projects, models.Projects, touched)
		next.Tasks = mergeLoaded(cols.Tasks, next.Tasks, models.Tasks, touched)
		next.Meetings = mergeLoaded(cols.Meetings, next.Meetings, models.Meetings, touched)
		next.Documents = mergeLoaded(cols.Documents, next.Documents, models.Documents, touched)
		next.SocialContents = mergeLoaded(cols.SocialContents, next.SocialContents, models.SocialContents, touched)
		next.CurrentUser = user
		return nil, nil
	})
}

// mergeLoaded returns loaded with every record in touched replaced by its
// local state. Touched records missing from loaded are appended.
func mergeLoaded[T models.Record](loaded, local []T, kind models.EntityType, touched map[string]bool) []T {
	if len(touched) == 0 {
		return loaded
	}
	byID := make(map[string]T, len(local))
	for _, v := range local {
		byID[v.EntityID()] = v
	}

	out := make([]T, 0, len(loaded))
	seen := make(map[string]bool, len(loaded))
	for _, v := range loaded {
		id := v.EntityID()
		seen[id] = true
		if !touched[recordKey(kind, id)] {
			out = append(out, v)
			continue
		}
		if lv, ok := byID[id]; ok {
			out = append(out, lv)
		}
	}
	for _, v := range local {
		if id := v.EntityID(); !seen[id] && touched[recordKey(kind, id)] {
			out = append(out, v)
		}
	}
	return out
}

// SetCurrentUser replaces the session user, e.g. after login or logout.
func (s *Store) SetCurrentUser(user *models.User) error {
	return s.mutate(func(next *Snapshot) (*pendingOp, error) {
		if user == nil && next.CurrentUser == nil {
			return nil, errUnchanged
		}
		if user != nil {
			u := *user
			user = &u
		}
		next.CurrentUser = user
		return nil, nil
	})
}

// Retry resends every write that is waiting after a failed confirmation and
// returns how many records were retried.
func (s *Store) Retry() int {
	return s.confirm.retry()
}

// Drain blocks until no confirmation is in flight. Writes waiting for a
// retry do not count as in flight.
func (s *Store) Drain(ctx context.Context) error {
	return s.confirm.drain(ctx)
}

// Pending lists writes that have not been confirmed yet.
func (s *Store) Pending() []PendingWrite {
	return s.confirm.pending()
}

// Close stops the retry sweep and cancels in-flight confirmations.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.cancel()

	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
	return nil
}
