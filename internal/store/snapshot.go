package store

import "pmsync/internal/models"

func find[T models.Record](items []T, id string) (T, bool) {
	if i := indexOf(items, id); i >= 0 {
		return items[i], true
	}
	var zero T
	return zero, false
}

func (s *Snapshot) Project(id string) (models.Project, bool) { return find(s.Projects, id) }
func (s *Snapshot) Task(id string) (models.Task, bool)       { return find(s.Tasks, id) }
func (s *Snapshot) Meeting(id string) (models.Meeting, bool) { return find(s.Meetings, id) }
func (s *Snapshot) Document(id string) (models.Document, bool) {
	return find(s.Documents, id)
}
func (s *Snapshot) SocialContent(id string) (models.SocialContent, bool) {
	return find(s.SocialContents, id)
}

// ProjectView is a project together with the records that belong to it.
type ProjectView struct {
	Project        models.Project
	Tasks          []models.Task
	Meetings       []models.Meeting
	Documents      []models.Document
	SocialContents []models.SocialContent
}

// ProjectView collects everything scoped to the project with the given id.
func (s *Snapshot) ProjectView(id string) (ProjectView, bool) {
	p, ok := s.Project(id)
	if !ok {
		return ProjectView{}, false
	}
	v := ProjectView{Project: p}
	for _, t := range s.Tasks {
		if t.ProjectID == id {
			v.Tasks = append(v.Tasks, t)
		}
	}
	for _, m := range s.Meetings {
		if m.ProjectID == id {
			v.Meetings = append(v.Meetings, m)
		}
	}
	for _, d := range s.Documents {
		if d.ProjectID == id {
			v.Documents = append(v.Documents, d)
		}
	}
	for _, sc := range s.SocialContents {
		if sc.ProjectID == id {
			v.SocialContents = append(v.SocialContents, sc)
		}
	}
	return v, true
}

// Collections returns the snapshot's data in the endpoint's bulk shape.
func (s *Snapshot) Collections() models.Collections {
	return models.Collections{
		Projects:       s.Projects,
		Tasks:          s.Tasks,
		Meetings:       s.Meetings,
		Documents:      s.Documents,
		SocialContents: s.SocialContents,
	}
}
