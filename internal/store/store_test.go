package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmsync/internal/gateway"
	"pmsync/internal/models"
)

type remoteCall struct {
	op      Op
	kind    models.EntityType
	id      string
	payload any
}

// fakeRemote records calls. When release is set every write blocks until the
// channel yields or closes. loadGate does the same for Load.
type fakeRemote struct {
	mu        sync.Mutex
	calls     []remoteCall
	active    map[string]int
	maxActive map[string]int

	load    models.Collections
	loadErr error
	fail    func(remoteCall) error
	release  chan struct{}
	loadGate chan struct{}
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{active: map[string]int{}, maxActive: map[string]int{}, load: models.EmptyCollections()}
}

func (f *fakeRemote) Load(ctx context.Context) (models.Collections, error) {
	if f.loadGate != nil {
		<-f.loadGate
	}
	return f.load, f.loadErr
}

func (f *fakeRemote) record(c remoteCall) error {
	key := string(c.kind) + "/" + c.id

	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.active[key]++
	if f.active[key] > f.maxActive[key] {
		f.maxActive[key] = f.active[key]
	}
	release := f.release
	fail := f.fail
	f.mu.Unlock()

	if release != nil {
		<-release
	}

	f.mu.Lock()
	f.active[key]--
	f.mu.Unlock()

	if fail != nil {
		return fail(c)
	}
	return nil
}

func (f *fakeRemote) Create(ctx context.Context, t models.EntityType, record any) error {
	return f.record(remoteCall{op: OpCreate, kind: t, id: record.(models.Record).EntityID(), payload: record})
}

func (f *fakeRemote) Update(ctx context.Context, t models.EntityType, id string, patch any) error {
	return f.record(remoteCall{op: OpUpdate, kind: t, id: id, payload: patch})
}

func (f *fakeRemote) Delete(ctx context.Context, t models.EntityType, id string) error {
	return f.record(remoteCall{op: OpDelete, kind: t, id: id})
}

func (f *fakeRemote) Calls() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteCall(nil), f.calls...)
}

func (f *fakeRemote) setFail(fn func(remoteCall) error) {
	f.mu.Lock()
	f.fail = fn
	f.mu.Unlock()
}

type warningSink struct {
	mu   sync.Mutex
	list []Warning
}

func (w *warningSink) add(v Warning) {
	w.mu.Lock()
	w.list = append(w.list, v)
	w.mu.Unlock()
}

func (w *warningSink) all() []Warning {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Warning(nil), w.list...)
}

func newTestStore(t *testing.T, remote Remote, opts Options) *Store {
	t.Helper()
	s, err := New(remote, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func drain(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Drain(ctx))
}

func seedProject(t *testing.T, s *Store, name string) models.Project {
	t.Helper()
	p, err := s.AddProject(ProjectDraft{Name: name, Deadline: "2024-12-01", Priority: models.PriorityHigh})
	require.NoError(t, err)
	return p
}

func TestScenarioProjectLifecycle(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, Options{})

	p := seedProject(t, s, "Launch")
	assert.NotEmpty(t, p.ID)
	assert.Empty(t, p.Members)
	assert.NotNil(t, p.Members)
	assert.Equal(t, 0, p.Progress)
	assert.Equal(t, models.PriorityHigh, p.Priority)
	assert.Equal(t, models.ProjectPlanning, p.Status)

	require.NoError(t, s.AddMember(p.ID, "a@x.com"))
	got, ok := s.Snapshot().Project(p.ID)
	require.True(t, ok)
	assert.Equal(t, []models.Member{{Identifier: "a@x.com", Role: models.RoleEditor, Status: models.MemberActive}}, got.Members)

	task, err := s.AddTask(models.Task{ProjectID: p.ID, Name: "Write brief", DueDate: "2024-11-20"})
	require.NoError(t, err)
	_, err = s.AddMeeting(models.Meeting{ProjectID: p.ID, Title: "Kickoff"})
	require.NoError(t, err)
	_, err = s.AddDocument(models.Document{ProjectID: p.ID, Name: "Proposal.pdf", Type: models.DocumentProposal})
	require.NoError(t, err)
	_, err = s.AddSocialContent(models.SocialContent{ProjectID: p.ID, Title: "Teaser", Budget: decimal.NewFromInt(500)})
	require.NoError(t, err)

	require.NoError(t, s.DeleteProject(p.ID))
	snap := s.Snapshot()
	_, ok = snap.Project(p.ID)
	assert.False(t, ok)
	_, ok = snap.Task(task.ID)
	assert.False(t, ok)
	assert.Empty(t, snap.Tasks)
	assert.Empty(t, snap.Meetings)
	assert.Empty(t, snap.Documents)
	assert.Empty(t, snap.SocialContents)

	drain(t, s)
	var projectOps []Op
	for _, c := range remote.Calls() {
		if c.kind == models.Projects && c.id == p.ID {
			projectOps = append(projectOps, c.op)
		}
	}
	assert.Equal(t, []Op{OpCreate, OpUpdate, OpDelete}, projectOps)
}

func TestDeleteProjectCascadesOnlyItsChildren(t *testing.T) {
	s := newTestStore(t, newFakeRemote(), Options{})

	a := seedProject(t, s, "A")
	b := seedProject(t, s, "B")
	for _, pid := range []string{a.ID, b.ID} {
		_, err := s.AddTask(models.Task{ProjectID: pid, Name: "task"})
		require.NoError(t, err)
		_, err = s.AddMeeting(models.Meeting{ProjectID: pid, Title: "sync"})
		require.NoError(t, err)
		_, err = s.AddDocument(models.Document{ProjectID: pid, Name: "doc"})
		require.NoError(t, err)
		_, err = s.AddSocialContent(models.SocialContent{ProjectID: pid, Title: "post"})
		require.NoError(t, err)
	}

	before := s.Snapshot()
	require.NoError(t, s.DeleteProject(a.ID))
	after := s.Snapshot()

	assert.Equal(t, before.Version+1, after.Version, "cascade is a single snapshot change")
	require.Len(t, after.Projects, 1)
	assert.Equal(t, b.ID, after.Projects[0].ID)

	view, ok := after.ProjectView(b.ID)
	require.True(t, ok)
	assert.Len(t, view.Tasks, 1)
	assert.Len(t, view.Meetings, 1)
	assert.Len(t, view.Documents, 1)
	assert.Len(t, view.SocialContents, 1)
	assert.Len(t, after.Tasks, 1)
	assert.Len(t, after.Meetings, 1)
	assert.Len(t, after.Documents, 1)
	assert.Len(t, after.SocialContents, 1)

	// The previous snapshot is untouched.
	assert.Len(t, before.Projects, 2)
	assert.Len(t, before.Tasks, 2)
}

func TestDeleteProjectDropsQueuedChildWrites(t *testing.T) {
	remote := newFakeRemote()
	remote.setFail(func(c remoteCall) error {
		if c.kind == models.Tasks {
			return errors.New("quota exceeded")
		}
		return nil
	})
	warnings := &warningSink{}
	s := newTestStore(t, remote, Options{OnWarning: warnings.add})

	p := seedProject(t, s, "Launch")
	task, err := s.AddTask(models.Task{ProjectID: p.ID, Name: "Write brief"})
	require.NoError(t, err)
	drain(t, s)
	require.Equal(t, []PendingWrite{{Op: OpCreate, Type: models.Tasks, ID: task.ID, Attempts: 1, Waiting: true}}, s.Pending())

	require.NoError(t, s.DeleteProject(p.ID))
	drain(t, s)
	assert.Empty(t, s.Pending())

	remote.setFail(nil)
	assert.Equal(t, 0, s.Retry())
	drain(t, s)

	taskCalls := 0
	for _, c := range remote.Calls() {
		if c.kind == models.Tasks {
			taskCalls++
		}
	}
	assert.Equal(t, 1, taskCalls)
	assert.Len(t, warnings.all(), 1)
}

func TestDeleteProjectStopsInFlightChildWrite(t *testing.T) {
	remote := newFakeRemote()
	remote.release = make(chan struct{})
	remote.setFail(func(c remoteCall) error {
		if c.kind == models.Tasks {
			return errors.New("quota exceeded")
		}
		return nil
	})
	warnings := &warningSink{}
	s := newTestStore(t, remote, Options{OnWarning: warnings.add})

	p := seedProject(t, s, "Launch")
	task, err := s.AddTask(models.Task{ProjectID: p.ID, Name: "Write brief"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTask(task.ID, models.TaskPatch{Assignee: models.Ptr("bob")}))

	require.NoError(t, s.DeleteProject(p.ID))
	close(remote.release)
	drain(t, s)

	assert.Empty(t, s.Pending())
	assert.Empty(t, warnings.all())
	assert.Equal(t, 0, s.Retry())

	var taskOps []Op
	for _, c := range remote.Calls() {
		if c.kind == models.Tasks {
			taskOps = append(taskOps, c.op)
		}
	}
	assert.Equal(t, []Op{OpCreate}, taskOps)
}

func TestDeleteUnknownProject(t *testing.T) {
	s := newTestStore(t, newFakeRemote(), Options{})
	err := s.DeleteProject("p-missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, uint64(0), s.Snapshot().Version)
}

func TestIDsAreUniquePerCollection(t *testing.T) {
	s := newTestStore(t, newFakeRemote(), Options{})
	p := seedProject(t, s, "Launch")

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		task, err := s.AddTask(models.Task{ProjectID: p.ID, Name: fmt.Sprintf("task %d", i)})
		require.NoError(t, err)
		assert.Regexp(t, `^t-`, task.ID)
		assert.False(t, seen[task.ID], "duplicate id %s", task.ID)
		seen[task.ID] = true
	}
	assert.Len(t, s.Snapshot().Tasks, 200)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, Options{})
	p := seedProject(t, s, "Launch")

	require.NoError(t, s.AddMember(p.ID, "a@x.com"))
	v := s.Snapshot().Version
	require.NoError(t, s.AddMember(p.ID, "a@x.com"))

	assert.Equal(t, v, s.Snapshot().Version)
	got, _ := s.Snapshot().Project(p.ID)
	assert.Len(t, got.Members, 1)

	drain(t, s)
	updates := 0
	for _, c := range remote.Calls() {
		if c.op == OpUpdate {
			updates++
		}
	}
	assert.Equal(t, 1, updates)

	assert.ErrorIs(t, s.AddMember(p.ID, "  "), ErrValidation)
	assert.ErrorIs(t, s.AddMember("p-missing", "b@x.com"), ErrNotFound)
}

func TestUpdateProjectMemberIdentifiersKeepRoles(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, Options{})
	p, err := s.AddProject(ProjectDraft{Name: "Launch", MemberIdentifiers: []string{"owner@x.com", "a@x.com", "a@x.com"}})
	require.NoError(t, err)
	require.Len(t, p.Members, 2)

	owner := models.Member{Identifier: "owner@x.com", Role: models.RoleOwner, Status: models.MemberActive}
	members := []models.Member{owner, p.Members[1]}
	require.NoError(t, s.UpdateProject(p.ID, models.ProjectPatch{Members: &members}))

	ids := []string{"owner@x.com", "b@x.com"}
	require.NoError(t, s.UpdateProject(p.ID, models.ProjectPatch{MemberIdentifiers: &ids, Progress: models.Ptr(40)}))

	got, _ := s.Snapshot().Project(p.ID)
	assert.Equal(t, []models.Member{
		owner,
		{Identifier: "b@x.com", Role: models.RoleEditor, Status: models.MemberActive},
	}, got.Members)
	assert.Equal(t, 40, got.Progress)

	drain(t, s)
	calls := remote.Calls()
	patch, ok := calls[len(calls)-1].payload.(models.ProjectPatch)
	require.True(t, ok)
	require.NotNil(t, patch.Members)
	assert.Len(t, *patch.Members, 2)
	assert.Nil(t, patch.MemberIdentifiers)
}

func TestProgressOutOfRangeIsRejected(t *testing.T) {
	s := newTestStore(t, newFakeRemote(), Options{})
	p := seedProject(t, s, "Launch")
	v := s.Snapshot().Version

	err := s.UpdateProject(p.ID, models.ProjectPatch{Progress: models.Ptr(150)})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, v, s.Snapshot().Version)

	got, _ := s.Snapshot().Project(p.ID)
	assert.Equal(t, 0, got.Progress)
}

func TestToggleTaskStatusCycles(t *testing.T) {
	remote := newFakeRemote()
	s := newTestStore(t, remote, Options{})
	p := seedProject(t, s, "Launch")
	task, err := s.AddTask(models.Task{ProjectID: p.ID, Name: "Write brief"})
	require.NoError(t, err)
	assert.Equal(t, models.TaskTodo, task.Status)

	for _, want := range []models.TaskStatus{models.TaskDoing, models.TaskDone, models.TaskTodo} {
		got, err := s.ToggleTaskStatus(task.ID)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		cur, _ := s.Snapshot().Task(task.ID)
		assert.Equal(t, want, cur.Status)
	}

	drain(t, s)
	var sent []models.TaskStatus
	for _, c := range remote.Calls() {
		if c.op == OpUpdate && c.id == task.ID {
			sent = append(sent, *c.payload.(models.TaskPatch).Status)
		}
	}
	assert.Equal(t, []models.TaskStatus{models.TaskDoing, models.TaskDone, models.TaskTodo}, sent)

	_, err = s.ToggleTaskStatus("t-missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMutationsAreVisibleBeforeConfirmation(t *testing.T) {
	remote := newFakeRemote()
	remote.release = make(chan struct{})
	s := newTestStore(t, remote, Options{})

	p := seedProject(t, s, "Launch")
	_, ok := s.Snapshot().Project(p.ID)
	assert.True(t, ok)

	task, err := s.AddTask(models.Task{ProjectID: p.ID, Name: "Write brief"})
	require.NoError(t, err)
	_, ok = s.Snapshot().Task(task.ID)
	assert.True(t, ok)

	require.NoError(t, s.UpdateTask(task.ID, models.TaskPatch{Assignee: models.Ptr("bob")}))
	cur, _ := s.Snapshot().Task(task.ID)
	assert.Equal(t, "bob", cur.Assignee)

	doc, err := s.AddDocument(models.Document{ProjectID: p.ID, Name: "brief.md"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteDocument(doc.ID))
	_, ok = s.Snapshot().Document(doc.ID)
	assert.False(t, ok)

	assert.NotEmpty(t, s.Pending())
	close(remote.release)
	drain(t, s)
	assert.Empty(t, s.Pending())
}

func TestWritesToOneRecordAreSerialized(t *testing.T) {
	remote := newFakeRemote()
	remote.release = make(chan struct{})
	s := newTestStore(t, remote, Options{})

	p := seedProject(t, s, "Launch")
	task, err := s.AddTask(models.Task{ProjectID: p.ID, Name: "v0"})
	require.NoError(t, err)
	require.NoError(t, s.UpdateTask(task.ID, models.TaskPatch{Name: models.Ptr("v1")}))
	require.NoError(t, s.UpdateTask(task.ID, models.TaskPatch{Name: models.Ptr("v2")}))

	// Only the project create and the task create can be in flight.
	require.Eventually(t, func() bool { return len(remote.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, remote.Calls(), 2)

	close(remote.release)
	drain(t, s)

	var names []string
	for _, c := range remote.Calls() {
		if c.kind == models.Tasks && c.op == OpUpdate {
			names = append(names, *c.payload.(models.TaskPatch).Name)
		}
	}
	assert.Equal(t, []string{"v1", "v2"}, names)

	remote.mu.Lock()
	defer remote.mu.Unlock()
	assert.Equal(t, 1, remote.maxActive["tasks/"+task.ID])
}

func TestFailedUpdateWarnsKeepsChangeAndRetries(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") == gateway.ActionUpdate && failing.Load() {
			_, _ = w.Write([]byte(`{"success":false,"error":"quota exceeded"}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{}}`))
	}))
	defer endpoint.Close()

	sink := &warningSink{}
	s := newTestStore(t, gateway.New(gateway.Config{BaseURL: endpoint.URL}, nil), Options{OnWarning: sink.add})
	require.NoError(t, s.Load(context.Background()))

	p := seedProject(t, s, "Launch")
	task, err := s.AddTask(models.Task{ProjectID: p.ID, Name: "Write brief"})
	require.NoError(t, err)
	drain(t, s)

	require.NoError(t, s.UpdateTask(task.ID, models.TaskPatch{Status: models.Ptr(models.TaskDone)}))
	drain(t, s)

	warnings := sink.all()
	require.Len(t, warnings, 1)
	w := warnings[0]
	assert.Equal(t, OpUpdate, w.Op)
	assert.Equal(t, models.Tasks, w.Type)
	assert.Equal(t, task.ID, w.ID)
	assert.False(t, w.Abandoned)

	var gwErr *gateway.Error
	require.ErrorAs(t, w, &gwErr)
	assert.Equal(t, "quota exceeded", gwErr.Message)

	cur, _ := s.Snapshot().Task(task.ID)
	assert.Equal(t, models.TaskDone, cur.Status, "optimistic change is kept")

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.True(t, pending[0].Waiting)
	assert.Equal(t, 1, pending[0].Attempts)

	failing.Store(false)
	assert.Equal(t, 1, s.Retry())
	drain(t, s)
	assert.Empty(t, s.Pending())
	assert.Len(t, sink.all(), 1)
}

func TestWriteIsAbandonedAfterMaxAttempts(t *testing.T) {
	remote := newFakeRemote()
	sink := &warningSink{}
	s := newTestStore(t, remote, Options{OnWarning: sink.add, MaxAttempts: 2})

	p := seedProject(t, s, "Launch")
	drain(t, s)

	remote.setFail(func(c remoteCall) error {
		if c.op == OpUpdate {
			return errors.New("sheet locked")
		}
		return nil
	})
	require.NoError(t, s.UpdateProject(p.ID, models.ProjectPatch{Description: models.Ptr("first")}))
	require.NoError(t, s.DeleteProject(p.ID))
	drain(t, s)

	require.Equal(t, 1, s.Retry())
	drain(t, s)

	warnings := sink.all()
	require.Len(t, warnings, 2)
	assert.False(t, warnings[0].Abandoned)
	assert.True(t, warnings[1].Abandoned)
	assert.Equal(t, 2, warnings[1].Attempt)

	// The delete queued behind the abandoned update goes through.
	assert.Empty(t, s.Pending())
	calls := remote.Calls()
	assert.Equal(t, OpDelete, calls[len(calls)-1].op)
}

func TestLoadFallbackWithoutEndpoint(t *testing.T) {
	user := &models.User{ID: "user-1", Email: "demo@example.com", Name: "Demo User", LoginMethod: models.LoginEmail}
	s := newTestStore(t, gateway.New(gateway.Config{}, nil), Options{Session: staticSession{user}})

	require.NoError(t, s.Load(context.Background()))
	snap := s.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.NoError(t, snap.LoadErr)
	assert.Empty(t, snap.Projects)
	assert.Empty(t, snap.Tasks)
	assert.Empty(t, snap.Meetings)
	assert.Empty(t, snap.Documents)
	assert.Empty(t, snap.SocialContents)
	require.NotNil(t, snap.CurrentUser)
	assert.Equal(t, "demo@example.com", snap.CurrentUser.Email)
}

func TestLoadFailurePublishesErrorState(t *testing.T) {
	remote := newFakeRemote()
	remote.loadErr = errors.New("endpoint unreachable")
	s := newTestStore(t, remote, Options{})

	err := s.Load(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.EqualError(t, snap.LoadErr, "endpoint unreachable")
	assert.Empty(t, snap.Projects)
}

func TestLoadReplacesCollections(t *testing.T) {
	remote := newFakeRemote()
	remote.load = models.Collections{
		Projects: []models.Project{{ID: "p-1", Name: "Launch"}},
		Tasks:    []models.Task{{ID: "t-1", ProjectID: "p-1", Name: "Brief", Status: models.TaskTodo}},
	}
	s := newTestStore(t, remote, Options{})

	require.NoError(t, s.Load(context.Background()))
	snap := s.Snapshot()
	require.Len(t, snap.Projects, 1)
	assert.NotNil(t, snap.Projects[0].Members)
	assert.NotNil(t, snap.Meetings)
	assert.Nil(t, snap.CurrentUser)
}

func TestLoadKeepsChangesMadeWhileLoading(t *testing.T) {
	remote := newFakeRemote()
	remote.load = models.Collections{
		Projects: []models.Project{{ID: "p-remote", Name: "Remote"}, {ID: "p-gone", Name: "Gone"}},
		Tasks:    []models.Task{{ID: "t-gone", ProjectID: "p-gone", Name: "child", Status: models.TaskTodo}},
	}
	s := newTestStore(t, remote, Options{})
	require.NoError(t, s.Load(context.Background()))

	remote.loadGate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	require.Eventually(t, func() bool { return s.Snapshot().Status == StatusLoading }, time.Second, time.Millisecond)

	local := seedProject(t, s, "Local")
	renamed := "Renamed"
	require.NoError(t, s.UpdateProject("p-remote", models.ProjectPatch{Name: &renamed}))
	require.NoError(t, s.DeleteProject("p-gone"))

	close(remote.loadGate)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	var ids []string
	for _, p := range snap.Projects {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"p-remote", local.ID}, ids)
	assert.Equal(t, "Renamed", snap.Projects[0].Name)
	assert.Empty(t, snap.Tasks)
}

func TestSubscribersSeeLatestSnapshot(t *testing.T) {
	s := newTestStore(t, newFakeRemote(), Options{})
	ch, unsubscribe := s.Subscribe()
	defer unsubscribe()

	seedProject(t, s, "A")
	seedProject(t, s, "B")

	select {
	case snap := <-ch:
		assert.Len(t, snap.Projects, 2)
		assert.Same(t, s.Snapshot(), snap)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}

	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestSetCurrentUser(t *testing.T) {
	s := newTestStore(t, newFakeRemote(), Options{})
	u := &models.User{ID: "user-1", Email: "line.user@line.me", LoginMethod: models.LoginLine}

	require.NoError(t, s.SetCurrentUser(u))
	u.Email = "changed"
	assert.Equal(t, "line.user@line.me", s.Snapshot().CurrentUser.Email)

	require.NoError(t, s.SetCurrentUser(nil))
	assert.Nil(t, s.Snapshot().CurrentUser)
}

func TestValidationOnCreate(t *testing.T) {
	s := newTestStore(t, newFakeRemote(), Options{})

	_, err := s.AddProject(ProjectDraft{Name: " "})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.AddTask(models.Task{ProjectID: "p-1"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.AddDocument(models.Document{ProjectID: "p-1"})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = s.AddSocialContent(models.SocialContent{ProjectID: "p-1", Budget: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, uint64(0), s.Snapshot().Version)
}

func TestClosedStoreRejectsMutations(t *testing.T) {
	s, err := New(newFakeRemote(), Options{RetryInterval: time.Minute})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.AddProject(ProjectDraft{Name: "Late"})
	assert.ErrorIs(t, err, ErrClosed)
}

type staticSession struct{ user *models.User }

func (s staticSession) CurrentUser(context.Context) *models.User { return s.user }
