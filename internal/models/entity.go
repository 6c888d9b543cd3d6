package models

import (
	"encoding/json"
	"fmt"
)

// EntityType names one of the five collections. The values double as the
// `type` query parameter of the endpoint.
type EntityType string

const (
	Projects       EntityType = "projects"
	Tasks          EntityType = "tasks"
	Meetings       EntityType = "meetings"
	Documents      EntityType = "documents"
	SocialContents EntityType = "socialContents"
)

// EntityTypes lists every collection in load order.
var EntityTypes = []EntityType{Projects, Tasks, Meetings, Documents, SocialContents}

// ChildTypes are the collections whose records reference a project.
var ChildTypes = []EntityType{Tasks, Meetings, Documents, SocialContents}

func (t EntityType) Valid() bool {
	switch t {
	case Projects, Tasks, Meetings, Documents, SocialContents:
		return true
	}
	return false
}

// Prefix is the id prefix used for records of this type.
func (t EntityType) Prefix() string {
	switch t {
	case Projects:
		return "p"
	case Tasks:
		return "t"
	case Meetings:
		return "m"
	case Documents:
		return "d"
	case SocialContents:
		return "s"
	}
	return "x"
}

// Collections is the bulk payload exchanged with the endpoint.
type Collections struct {
	Projects       []Project       `json:"projects"`
	Tasks          []Task          `json:"tasks"`
	Meetings       []Meeting       `json:"meetings"`
	Documents      []Document      `json:"documents"`
	SocialContents []SocialContent `json:"socialContents"`
}

// EmptyCollections returns collections with non-nil empty slices so that they
// serialize as [] rather than null.
func EmptyCollections() Collections {
	return Collections{
		Projects:       []Project{},
		Tasks:          []Task{},
		Meetings:       []Meeting{},
		Documents:      []Document{},
		SocialContents: []SocialContent{},
	}
}

// Normalize replaces nil slices with empty ones.
func (c Collections) Normalize() Collections {
	if c.Projects == nil {
		c.Projects = []Project{}
	}
	for i := range c.Projects {
		if c.Projects[i].Members == nil {
			c.Projects[i].Members = []Member{}
		}
	}
	if c.Tasks == nil {
		c.Tasks = []Task{}
	}
	if c.Meetings == nil {
		c.Meetings = []Meeting{}
	}
	if c.Documents == nil {
		c.Documents = []Document{}
	}
	if c.SocialContents == nil {
		c.SocialContents = []SocialContent{}
	}
	return c
}

// DecodeRecord parses a JSON record of the given type.
func DecodeRecord(t EntityType, data []byte) (Record, error) {
	var (
		rec Record
		err error
	)
	switch t {
	case Projects:
		var p Project
		err = json.Unmarshal(data, &p)
		rec = p
	case Tasks:
		var v Task
		err = json.Unmarshal(data, &v)
		rec = v
	case Meetings:
		var v Meeting
		err = json.Unmarshal(data, &v)
		rec = v
	case Documents:
		var v Document
		err = json.Unmarshal(data, &v)
		rec = v
	case SocialContents:
		var v SocialContent
		err = json.Unmarshal(data, &v)
		rec = v
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return rec, nil
}

// MergeRecord applies a partial JSON document onto a stored record of type t
// and returns the merged record. Only fields declared on the entity survive;
// the id is never overwritten by the patch.
func MergeRecord(t EntityType, stored, patch []byte) (Record, error) {
	var target any
	switch t {
	case Projects:
		target = &Project{}
	case Tasks:
		target = &Task{}
	case Meetings:
		target = &Meeting{}
	case Documents:
		target = &Document{}
	case SocialContents:
		target = &SocialContent{}
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	if err := json.Unmarshal(stored, target); err != nil {
		return nil, fmt.Errorf("decode stored %s: %w", t, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, fmt.Errorf("decode patch: %w", err)
	}
	delete(fields, "id")
	cleaned, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(cleaned, target); err != nil {
		return nil, fmt.Errorf("apply patch to %s: %w", t, err)
	}

	switch v := target.(type) {
	case *Project:
		return *v, nil
	case *Task:
		return *v, nil
	case *Meeting:
		return *v, nil
	case *Document:
		return *v, nil
	case *SocialContent:
		return *v, nil
	}
	return nil, fmt.Errorf("unknown entity type %q", t)
}
