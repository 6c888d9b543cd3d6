package store

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pmsync/internal/models"
)

// collection binds an entity type to its slice in a Snapshot.
type collection[T models.Record] struct {
	kind models.EntityType
	get  func(*Snapshot) []T
	set  func(*Snapshot, []T)
}

var (
	projects = collection[models.Project]{
		kind: models.Projects,
		get:  func(s *Snapshot) []models.Project { return s.Projects },
		set:  func(s *Snapshot, v []models.Project) { s.Projects = v },
	}
	tasks = collection[models.Task]{
		kind: models.Tasks,
		get:  func(s *Snapshot) []models.Task { return s.Tasks },
		set:  func(s *Snapshot, v []models.Task) { s.Tasks = v },
	}
	meetings = collection[models.Meeting]{
		kind: models.Meetings,
		get:  func(s *Snapshot) []models.Meeting { return s.Meetings },
		set:  func(s *Snapshot, v []models.Meeting) { s.Meetings = v },
	}
	documents = collection[models.Document]{
		kind: models.Documents,
		get:  func(s *Snapshot) []models.Document { return s.Documents },
		set:  func(s *Snapshot, v []models.Document) { s.Documents = v },
	}
	socialContents = collection[models.SocialContent]{
		kind: models.SocialContents,
		get:  func(s *Snapshot) []models.SocialContent { return s.SocialContents },
		set:  func(s *Snapshot, v []models.SocialContent) { s.SocialContents = v },
	}
)

func indexOf[T models.Record](items []T, id string) int {
	for i := range items {
		if items[i].EntityID() == id {
			return i
		}
	}
	return -1
}

func notFound(t models.EntityType, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, t, id)
}

// insert appends rec and queues a create with the full record.
func insert[T models.Record](s *Store, c collection[T], rec T) error {
	return s.mutate(func(next *Snapshot) (*pendingOp, error) {
		items := c.get(next)
		out := make([]T, len(items), len(items)+1)
		copy(out, items)
		c.set(next, append(out, rec))
		return &pendingOp{op: OpCreate, entity: c.kind, id: rec.EntityID(), payload: rec}, nil
	})
}

// modify replaces the record with the given id by the result of change and
// queues an update carrying the patch change returns. change may return
// errUnchanged to skip both.
func modify[T models.Record](s *Store, c collection[T], id string, change func(cur T) (T, any, error)) error {
	return s.mutate(func(next *Snapshot) (*pendingOp, error) {
		items := c.get(next)
		i := indexOf(items, id)
		if i < 0 {
			return nil, notFound(c.kind, id)
		}
		updated, patch, err := change(items[i])
		if err != nil {
			return nil, err
		}
		out := make([]T, len(items))
		copy(out, items)
		out[i] = updated
		c.set(next, out)
		return &pendingOp{op: OpUpdate, entity: c.kind, id: id, payload: patch}, nil
	})
}

// remove drops the record with the given id and queues a delete.
func remove[T models.Record](s *Store, c collection[T], id string) error {
	return s.mutate(func(next *Snapshot) (*pendingOp, error) {
		items := c.get(next)
		i := indexOf(items, id)
		if i < 0 {
			return nil, notFound(c.kind, id)
		}
		c.set(next, without(items, func(v T) bool { return v.EntityID() == id }))
		return &pendingOp{op: OpDelete, entity: c.kind, id: id}, nil
	})
}

// without returns a new slice holding the items drop rejects.
func without[T any](items []T, drop func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, v := range items {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s *Store) checkProjectRef(kind models.EntityType, projectID string) {
	if projectID == "" || indexOf(s.Snapshot().Projects, projectID) < 0 {
		s.logger.Warn("record references unknown project",
			zap.String("type", string(kind)),
			zap.String("projectId", projectID))
	}
}

// ProjectDraft holds the caller-supplied fields of a new project.
type ProjectDraft struct {
	Name              string
	Description       string
	Status            models.ProjectStatus
	Priority          models.Priority
	StartDate         string
	Deadline          string
	OwnerID           string
	MemberIdentifiers []string
}

func newMember(identifier string) models.Member {
	return models.Member{Identifier: identifier, Role: models.RoleEditor, Status: models.MemberActive}
}

// resolveMembers builds a member list from identifiers, keeping the role and
// status of people already on the project and dropping duplicates.
func resolveMembers(existing []models.Member, identifiers []string) []models.Member {
	known := make(map[string]models.Member, len(existing))
	for _, m := range existing {
		known[m.Identifier] = m
	}
	seen := map[string]bool{}
	out := make([]models.Member, 0, len(identifiers))
	for _, raw := range identifiers {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if m, ok := known[id]; ok {
			out = append(out, m)
			continue
		}
		out = append(out, newMember(id))
	}
	return out
}

// AddProject creates a project with progress 0 and the given members as
// active editors.
func (s *Store) AddProject(d ProjectDraft) (models.Project, error) {
	if strings.TrimSpace(d.Name) == "" {
		return models.Project{}, fmt.Errorf("%w: name: must not be empty", ErrValidation)
	}
	if d.Status == "" {
		d.Status = models.ProjectPlanning
	}
	if d.Priority == "" {
		d.Priority = models.PriorityMedium
	}
	if !d.Status.Valid() {
		return models.Project{}, fmt.Errorf("%w: status: unknown value %q", ErrValidation, d.Status)
	}
	if !d.Priority.Valid() {
		return models.Project{}, fmt.Errorf("%w: priority: unknown value %q", ErrValidation, d.Priority)
	}

	p := models.Project{
		ID:          s.newID(models.Projects),
		Name:        strings.TrimSpace(d.Name),
		Description: d.Description,
		Status:      d.Status,
		Priority:    d.Priority,
		StartDate:   d.StartDate,
		Deadline:    d.Deadline,
		OwnerID:     d.OwnerID,
		Progress:    0,
		Members:     resolveMembers(nil, d.MemberIdentifiers),
	}
	if err := insert(s, projects, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// UpdateProject merges patch into the project. MemberIdentifiers, when set,
// replaces the member list.
func (s *Store) UpdateProject(id string, patch models.ProjectPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return modify(s, projects, id, func(cur models.Project) (models.Project, any, error) {
		if patch.MemberIdentifiers != nil {
			members := resolveMembers(cur.Members, *patch.MemberIdentifiers)
			patch.Members = &members
			patch.MemberIdentifiers = nil
		}
		patch.Apply(&cur)
		return cur, patch, nil
	})
}

// AddMember invites identifier to the project as an active editor. Adding a
// member that is already present changes nothing.
func (s *Store) AddMember(projectID, identifier string) error {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: member: must not be empty", ErrValidation)
	}
	return modify(s, projects, projectID, func(cur models.Project) (models.Project, any, error) {
		if cur.HasMember(identifier) {
			return cur, nil, errUnchanged
		}
		members := make([]models.Member, len(cur.Members), len(cur.Members)+1)
		copy(members, cur.Members)
		members = append(members, newMember(identifier))
		cur.Members = members
		return cur, models.ProjectPatch{Members: &members}, nil
	})
}

// DeleteProject removes the project together with every task, meeting,
// document and social post that references it. Unconfirmed writes of the
// removed children are dropped; the endpoint cascades the delete itself.
func (s *Store) DeleteProject(id string) error {
	return s.mutate(func(next *Snapshot) (*pendingOp, error) {
		if indexOf(next.Projects, id) < 0 {
			return nil, notFound(models.Projects, id)
		}

		var orphans []string
		next.Projects = without(next.Projects, func(p models.Project) bool { return p.ID == id })
		next.Tasks = dropChildren(next.Tasks, models.Tasks, id, &orphans)
		next.Meetings = dropChildren(next.Meetings, models.Meetings, id, &orphans)
		next.Documents = dropChildren(next.Documents, models.Documents, id, &orphans)
		next.SocialContents = dropChildren(next.SocialContents, models.SocialContents, id, &orphans)

		s.touchLocked(orphans...)
		dropped := s.confirm.discard(orphans)
		s.logger.Info("project deleted",
			zap.String("id", id),
			zap.Int("cascaded", len(orphans)),
			zap.Int("droppedWrites", dropped))
		return &pendingOp{op: OpDelete, entity: models.Projects, id: id}, nil
	})
}

// dropChildren filters out the records of projectID and appends their queue
// keys to keys.
func dropChildren[T models.Record](items []T, kind models.EntityType, projectID string, keys *[]string) []T {
	return without(items, func(v T) bool {
		if v.OwnerProjectID() != projectID {
			return false
		}
		*keys = append(*keys, recordKey(kind, v.EntityID()))
		return true
	})
}

// AddTask creates a task. Status defaults to Todo and priority to Medium.
func (s *Store) AddTask(t models.Task) (models.Task, error) {
	if strings.TrimSpace(t.Name) == "" {
		return models.Task{}, fmt.Errorf("%w: name: must not be empty", ErrValidation)
	}
	if t.Status == "" {
		t.Status = models.TaskTodo
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !t.Status.Valid() {
		return models.Task{}, fmt.Errorf("%w: status: unknown value %q", ErrValidation, t.Status)
	}
	if !t.Priority.Valid() {
		return models.Task{}, fmt.Errorf("%w: priority: unknown value %q", ErrValidation, t.Priority)
	}
	s.checkProjectRef(models.Tasks, t.ProjectID)

	t.ID = s.newID(models.Tasks)
	if err := insert(s, tasks, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

func (s *Store) UpdateTask(id string, patch models.TaskPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return modify(s, tasks, id, func(cur models.Task) (models.Task, any, error) {
		patch.Apply(&cur)
		return cur, patch, nil
	})
}

func (s *Store) DeleteTask(id string) error {
	return remove(s, tasks, id)
}

// ToggleTaskStatus advances the task to the next status in the
// Todo -> Doing -> Done -> Todo cycle and returns it.
func (s *Store) ToggleTaskStatus(id string) (models.TaskStatus, error) {
	var status models.TaskStatus
	err := modify(s, tasks, id, func(cur models.Task) (models.Task, any, error) {
		status = cur.Status.Next()
		cur.Status = status
		return cur, models.TaskPatch{Status: &status}, nil
	})
	return status, err
}

// AddMeeting creates a meeting.
func (s *Store) AddMeeting(m models.Meeting) (models.Meeting, error) {
	if strings.TrimSpace(m.Title) == "" {
		return models.Meeting{}, fmt.Errorf("%w: title: must not be empty", ErrValidation)
	}
	if m.Attendees == nil {
		m.Attendees = []string{}
	} else {
		m.Attendees = append([]string(nil), m.Attendees...)
	}
	s.checkProjectRef(models.Meetings, m.ProjectID)

	m.ID = s.newID(models.Meetings)
	if err := insert(s, meetings, m); err != nil {
		return models.Meeting{}, err
	}
	return m, nil
}

func (s *Store) UpdateMeeting(id string, patch models.MeetingPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return modify(s, meetings, id, func(cur models.Meeting) (models.Meeting, any, error) {
		patch.Apply(&cur)
		return cur, patch, nil
	})
}

func (s *Store) DeleteMeeting(id string) error {
	return remove(s, meetings, id)
}

// AddDocument records metadata of an uploaded document. Name is required.
func (s *Store) AddDocument(d models.Document) (models.Document, error) {
	if strings.TrimSpace(d.Name) == "" {
		return models.Document{}, fmt.Errorf("%w: name: must not be empty", ErrValidation)
	}
	s.checkProjectRef(models.Documents, d.ProjectID)

	d.ID = s.newID(models.Documents)
	if err := insert(s, documents, d); err != nil {
		return models.Document{}, err
	}
	return d, nil
}

func (s *Store) UpdateDocument(id string, patch models.DocumentPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return modify(s, documents, id, func(cur models.Document) (models.Document, any, error) {
		patch.Apply(&cur)
		return cur, patch, nil
	})
}

func (s *Store) DeleteDocument(id string) error {
	return remove(s, documents, id)
}

// AddSocialContent creates a social post. Status defaults to Draft and the
// budget must not be negative.
func (s *Store) AddSocialContent(sc models.SocialContent) (models.SocialContent, error) {
	if sc.Budget.IsNegative() {
		return models.SocialContent{}, fmt.Errorf("%w: budget: %s is negative", ErrValidation, sc.Budget)
	}
	if sc.Status == "" {
		sc.Status = models.SocialDraft
	}
	s.checkProjectRef(models.SocialContents, sc.ProjectID)

	sc.ID = s.newID(models.SocialContents)
	if err := insert(s, socialContents, sc); err != nil {
		return models.SocialContent{}, err
	}
	return sc, nil
}

func (s *Store) UpdateSocialContent(id string, patch models.SocialContentPatch) error {
	if err := patch.Validate(); err != nil {
		return err
	}
	return modify(s, socialContents, id, func(cur models.SocialContent) (models.SocialContent, any, error) {
		patch.Apply(&cur)
		return cur, patch, nil
	})
}

func (s *Store) DeleteSocialContent(id string) error {
	return remove(s, socialContents, id)
}
