package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidField is returned when a record or patch carries a value outside
// its allowed domain.
var ErrInvalidField = errors.New("invalid field")

func invalid(field string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidField, field, fmt.Sprintf(format, args...))
}

// ProjectPatch is a partial update of a project. Nil fields are left alone.
// MemberIdentifiers replaces the member list by identifier and is resolved
// into Members by the store before the patch is sent.
type ProjectPatch struct {
	Name              *string        `json:"name,omitempty"`
	Description       *string        `json:"description,omitempty"`
	Status            *ProjectStatus `json:"status,omitempty"`
	Priority          *Priority      `json:"priority,omitempty"`
	StartDate         *string        `json:"startDate,omitempty"`
	Deadline          *string        `json:"deadline,omitempty"`
	OwnerID           *string        `json:"ownerId,omitempty"`
	Progress          *int           `json:"progress,omitempty"`
	Members           *[]Member      `json:"members,omitempty"`
	MemberIdentifiers *[]string      `json:"-"`
}

func (p ProjectPatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return invalid("name", "must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "unknown value %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return invalid("priority", "unknown value %q", *p.Priority)
	}
	if p.Progress != nil && (*p.Progress < 0 || *p.Progress > 100) {
		return invalid("progress", "%d is outside 0..100", *p.Progress)
	}
	return nil
}

// Apply merges the patch into project.
func (p ProjectPatch) Apply(project *Project) {
	setString(&project.Name, p.Name)
	setString(&project.Description, p.Description)
	if p.Status != nil {
		project.Status = *p.Status
	}
	if p.Priority != nil {
		project.Priority = *p.Priority
	}
	setString(&project.StartDate, p.StartDate)
	setString(&project.Deadline, p.Deadline)
	setString(&project.OwnerID, p.OwnerID)
	if p.Progress != nil {
		project.Progress = *p.Progress
	}
	if p.Members != nil {
		project.Members = append([]Member(nil), (*p.Members)...)
	}
}

// TaskPatch is a partial update of a task.
type TaskPatch struct {
	ProjectID    *string     `json:"projectId,omitempty"`
	Name         *string     `json:"name,omitempty"`
	Description  *string     `json:"description,omitempty"`
	Status       *TaskStatus `json:"status,omitempty"`
	Priority     *Priority   `json:"priority,omitempty"`
	DueDate      *string     `json:"dueDate,omitempty"`
	Assignee     *string     `json:"assignee,omitempty"`
	MeetingID    *string     `json:"meetingId,omitempty"`
	RelatedDocID *string     `json:"relatedDocId,omitempty"`
}

func (p TaskPatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return invalid("name", "must not be empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", "unknown value %q", *p.Status)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return invalid("priority", "unknown value %q", *p.Priority)
	}
	return nil
}

func (p TaskPatch) Apply(t *Task) {
	setString(&t.ProjectID, p.ProjectID)
	setString(&t.Name, p.Name)
	setString(&t.Description, p.Description)
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	setString(&t.DueDate, p.DueDate)
	setString(&t.Assignee, p.Assignee)
	setString(&t.MeetingID, p.MeetingID)
	setString(&t.RelatedDocID, p.RelatedDocID)
}

// MeetingPatch is a partial update of a meeting.
type MeetingPatch struct {
	ProjectID       *string   `json:"projectId,omitempty"`
	Title           *string   `json:"title,omitempty"`
	Time            *string   `json:"time,omitempty"`
	Duration        *string   `json:"duration,omitempty"`
	Link            *string   `json:"link,omitempty"`
	Attendees       *[]string `json:"attendees,omitempty"`
	Type            *string   `json:"type,omitempty"`
	Remarks         *string   `json:"remarks,omitempty"`
	DecisionContent *string   `json:"decisionContent,omitempty"`
	DecisionReason  *string   `json:"decisionReason,omitempty"`
	DecisionMaker   *string   `json:"decisionMaker,omitempty"`
	DecisionTime    *string   `json:"decisionTime,omitempty"`
	IsCompleted     *bool     `json:"isCompleted,omitempty"`
}

func (p MeetingPatch) Validate() error {
	if p.Title != nil && *p.Title == "" {
		return invalid("title", "must not be empty")
	}
	return nil
}

func (p MeetingPatch) Apply(m *Meeting) {
	setString(&m.ProjectID, p.ProjectID)
	setString(&m.Title, p.Title)
	setString(&m.Time, p.Time)
	setString(&m.Duration, p.Duration)
	setString(&m.Link, p.Link)
	if p.Attendees != nil {
		m.Attendees = append([]string(nil), (*p.Attendees)...)
	}
	setString(&m.Type, p.Type)
	setString(&m.Remarks, p.Remarks)
	setString(&m.DecisionContent, p.DecisionContent)
	setString(&m.DecisionReason, p.DecisionReason)
	setString(&m.DecisionMaker, p.DecisionMaker)
	setString(&m.DecisionTime, p.DecisionTime)
	if p.IsCompleted != nil {
		m.IsCompleted = *p.IsCompleted
	}
}

// DocumentPatch is a partial update of document metadata.
type DocumentPatch struct {
	ProjectID      *string       `json:"projectId,omitempty"`
	Name           *string       `json:"name,omitempty"`
	DocumentType   *string       `json:"documentType,omitempty"`
	Type           *DocumentType `json:"type,omitempty"`
	FileURL        *string       `json:"fileUrl,omitempty"`
	FileSize       *string       `json:"fileSize,omitempty"`
	UploadedBy     *string       `json:"uploadedBy,omitempty"`
	Version        *string       `json:"version,omitempty"`
	RelatedTaskIDs *string       `json:"relatedTaskIds,omitempty"`
}

func (p DocumentPatch) Validate() error {
	if p.Name != nil && *p.Name == "" {
		return invalid("name", "must not be empty")
	}
	return nil
}

func (p DocumentPatch) Apply(d *Document) {
	setString(&d.ProjectID, p.ProjectID)
	setString(&d.Name, p.Name)
	setString(&d.DocumentType, p.DocumentType)
	if p.Type != nil {
		d.Type = *p.Type
	}
	setString(&d.FileURL, p.FileURL)
	setString(&d.FileSize, p.FileSize)
	setString(&d.UploadedBy, p.UploadedBy)
	setString(&d.Version, p.Version)
	setString(&d.RelatedTaskIDs, p.RelatedTaskIDs)
}

// SocialContentPatch is a partial update of a social post.
type SocialContentPatch struct {
	ProjectID    *string          `json:"projectId,omitempty"`
	Title        *string          `json:"title,omitempty"`
	Content      *string          `json:"content,omitempty"`
	Platform     *string          `json:"platform,omitempty"`
	Status       *SocialStatus    `json:"status,omitempty"`
	PublishTime  *string          `json:"publishTime,omitempty"`
	Hashtags     *string          `json:"hashtags,omitempty"`
	Theme        *string          `json:"theme,omitempty"`
	MaterialLink *string          `json:"materialLink,omitempty"`
	Budget       *decimal.Decimal `json:"budget,omitempty"`
	Date         *string          `json:"date,omitempty"`
	PostLink     *string          `json:"postLink,omitempty"`
	Type         *string          `json:"type,omitempty"`
	Collaborator *string          `json:"collaborator,omitempty"`
}

func (p SocialContentPatch) Validate() error {
	if p.Budget != nil && p.Budget.IsNegative() {
		return invalid("budget", "%s is negative", p.Budget.String())
	}
	return nil
}

func (p SocialContentPatch) Apply(s *SocialContent) {
	setString(&s.ProjectID, p.ProjectID)
	setString(&s.Title, p.Title)
	setString(&s.Content, p.Content)
	setString(&s.Platform, p.Platform)
	if p.Status != nil {
		s.Status = *p.Status
	}
	setString(&s.PublishTime, p.PublishTime)
	setString(&s.Hashtags, p.Hashtags)
	setString(&s.Theme, p.Theme)
	setString(&s.MaterialLink, p.MaterialLink)
	if p.Budget != nil {
		s.Budget = *p.Budget
	}
	setString(&s.Date, p.Date)
	setString(&s.PostLink, p.PostLink)
	setString(&s.Type, p.Type)
	setString(&s.Collaborator, p.Collaborator)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Ptr returns a pointer to v. Handy when building patches.
func Ptr[T any](v T) *T {
	return &v
}
