package models

import "github.com/shopspring/decimal"

func init() {
	// The endpoint stores budgets as plain numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// ProjectStatus is the lifecycle stage of a project.
type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "規劃中"
	ProjectOngoing   ProjectStatus = "進行中"
	ProjectCompleted ProjectStatus = "完成"
	ProjectOnHold    ProjectStatus = "暫停"
)

// Valid reports whether the status is one of the known project stages.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectOngoing, ProjectCompleted, ProjectOnHold:
		return true
	}
	return false
}

// TaskStatus is the board column of a task.
type TaskStatus string

const (
	TaskTodo  TaskStatus = "Todo"
	TaskDoing TaskStatus = "Doing"
	TaskDone  TaskStatus = "Done"
)

// Next returns the status that follows s in the Todo -> Doing -> Done cycle.
// Unknown values restart the cycle at Todo.
func (s TaskStatus) Next() TaskStatus {
	switch s {
	case TaskTodo:
		return TaskDoing
	case TaskDoing:
		return TaskDone
	default:
		return TaskTodo
	}
}

// Valid reports whether the status is a known board column.
func (s TaskStatus) Valid() bool {
	return s == TaskTodo || s == TaskDoing || s == TaskDone
}

// Priority is shared by projects and tasks.
type Priority string

const (
	PriorityLow    Priority = "低"
	PriorityMedium Priority = "中"
	PriorityHigh   Priority = "高"
)

func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// MemberRole is the permission level of a project member.
type MemberRole string

const (
	RoleOwner  MemberRole = "Owner"
	RoleEditor MemberRole = "Editor"
	RoleViewer MemberRole = "Viewer"
)

// MemberStatus tells whether an invited member has joined.
type MemberStatus string

const (
	MemberActive  MemberStatus = "Active"
	MemberPending MemberStatus = "Pending"
)

// SocialStatus is the publishing state of a social post.
type SocialStatus string

const (
	SocialDraft     SocialStatus = "草稿"
	SocialScheduled SocialStatus = "排程"
	SocialPublished SocialStatus = "已發布"
)

// DocumentType classifies uploaded project documents.
type DocumentType string

const (
	DocumentProposal      DocumentType = "提案"
	DocumentSpecification DocumentType = "規格"
	DocumentPresentation  DocumentType = "簡報"
)

// LoginMethod records how a user signed in.
type LoginMethod string

const (
	LoginEmail LoginMethod = "email"
	LoginLine  LoginMethod = "line"
)

// Member is one entry of a project's member list. Identifier is usually an
// email address and is unique within the list.
type Member struct {
	Identifier string       `json:"gmail"`
	Role       MemberRole   `json:"role"`
	Status     MemberStatus `json:"status"`
}

// Project groups tasks, meetings, documents and social posts.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Status      ProjectStatus `json:"status"`
	Priority    Priority      `json:"priority"`
	StartDate   string        `json:"startDate"`
	Deadline    string        `json:"deadline"`
	OwnerID     string        `json:"ownerId"`
	Progress    int           `json:"progress"`
	Members     []Member      `json:"members"`
}

// HasMember reports whether identifier is already in the member list.
func (p Project) HasMember(identifier string) bool {
	for _, m := range p.Members {
		if m.Identifier == identifier {
			return true
		}
	}
	return false
}

// Task is a unit of work inside a project.
type Task struct {
	ID           string     `json:"id"`
	ProjectID    string     `json:"projectId"`
	Name         string     `json:"name"`
	Description  string     `json:"description,omitempty"`
	Status       TaskStatus `json:"status"`
	Priority     Priority   `json:"priority"`
	DueDate      string     `json:"dueDate"`
	Assignee     string     `json:"assignee,omitempty"`
	MeetingID    string     `json:"meetingId,omitempty"`
	RelatedDocID string     `json:"relatedDocId,omitempty"`
}

// Meeting is a scheduled discussion and the decision it produced.
type Meeting struct {
	ID              string   `json:"id"`
	ProjectID       string   `json:"projectId"`
	Title           string   `json:"title"`
	Time            string   `json:"time"`
	Duration        string   `json:"duration"`
	Link            string   `json:"link"`
	Attendees       []string `json:"attendees"`
	Type            string   `json:"type"`
	Remarks         string   `json:"remarks"`
	DecisionContent string   `json:"decisionContent"`
	DecisionReason  string   `json:"decisionReason"`
	DecisionMaker   string   `json:"decisionMaker"`
	DecisionTime    string   `json:"decisionTime"`
	IsCompleted     bool     `json:"isCompleted"`
}

// Document is metadata about a file attached to a project.
type Document struct {
	ID             string       `json:"id"`
	ProjectID      string       `json:"projectId"`
	Name           string       `json:"name"`
	DocumentType   string       `json:"documentType,omitempty"`
	Type           DocumentType `json:"type,omitempty"`
	FileURL        string       `json:"fileUrl,omitempty"`
	FileSize       string       `json:"fileSize,omitempty"`
	UploadedBy     string       `json:"uploadedBy,omitempty"`
	Version        string       `json:"version,omitempty"`
	RelatedTaskIDs string       `json:"relatedTaskIds,omitempty"`
}

// SocialContent is a planned or published social media post.
type SocialContent struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"projectId"`
	Title        string          `json:"title"`
	Content      string          `json:"content"`
	Platform     string          `json:"platform"`
	Status       SocialStatus    `json:"status"`
	PublishTime  string          `json:"publishTime"`
	Hashtags     string          `json:"hashtags"`
	Theme        string          `json:"theme"`
	MaterialLink string          `json:"materialLink"`
	Budget       decimal.Decimal `json:"budget"`
	Date         string          `json:"date,omitempty"`
	PostLink     string          `json:"postLink,omitempty"`
	Type         string          `json:"type,omitempty"`
	Collaborator string          `json:"collaborator,omitempty"`
}

// User is the signed-in session user. It is never sent to the endpoint.
type User struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Avatar      string      `json:"avatar,omitempty"`
	LoginMethod LoginMethod `json:"loginMethod"`
}

func (p Project) EntityID() string       { return p.ID }
func (t Task) EntityID() string          { return t.ID }
func (m Meeting) EntityID() string       { return m.ID }
func (d Document) EntityID() string      { return d.ID }
func (s SocialContent) EntityID() string { return s.ID }

// OwnerProjectID is the project a record belongs to. Projects own themselves.
func (p Project) OwnerProjectID() string       { return p.ID }
func (t Task) OwnerProjectID() string          { return t.ProjectID }
func (m Meeting) OwnerProjectID() string       { return m.ProjectID }
func (d Document) OwnerProjectID() string      { return d.ProjectID }
func (s SocialContent) OwnerProjectID() string { return s.ProjectID }

// Record is implemented by every persisted entity.
type Record interface {
	EntityID() string
	OwnerProjectID() string
}
