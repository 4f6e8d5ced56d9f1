package api

import (
	"encoding/gob"
	"fmt"
)

func init() {
	gob.Register(RequestorAssignee{})
	gob.Register(RequestorDepartmentAssignee{})
	gob.Register(FixedAssignee{})
	gob.Register(LookupFieldAssignee{})
}

// AssigneeKind discriminates the assignee selection modes.
type AssigneeKind string

const (
	AssigneeNone                AssigneeKind = ""
	AssigneeRequestor           AssigneeKind = "requestor"
	AssigneeRequestorDepartment AssigneeKind = "requestor_department"
	AssigneeFixed               AssigneeKind = "fixed"
	AssigneeLookupField         AssigneeKind = "lookup_field"
)

// Assignee selects who acts on a stage. It is a closed set: only the types
// declared in this package implement it.
type Assignee interface {
	Kind() AssigneeKind
	isAssignee()
}

// RequestorAssignee routes the stage back to the person who submitted the request.
type RequestorAssignee struct{}

// RequestorDepartmentAssignee routes the stage to the requestor's department.
type RequestorDepartmentAssignee struct{}

// FixedAssignee routes the stage to a fixed department and, optionally, a
// position within it.
type FixedAssignee struct {
	DepartmentID string
	PositionID   string
}

// LookupFieldAssignee is resolved at submission time from a form field.
type LookupFieldAssignee struct {
	Key string
}

func (RequestorAssignee) Kind() AssigneeKind           { return AssigneeRequestor }
func (RequestorDepartmentAssignee) Kind() AssigneeKind { return AssigneeRequestorDepartment }
func (FixedAssignee) Kind() AssigneeKind               { return AssigneeFixed }
func (LookupFieldAssignee) Kind() AssigneeKind         { return AssigneeLookupField }

func (RequestorAssignee) isAssignee()           {}
func (RequestorDepartmentAssignee) isAssignee() {}
func (FixedAssignee) isAssignee()               {}
func (LookupFieldAssignee) isAssignee()         {}

// KindOf returns the kind of a, or AssigneeNone for nil.
func KindOf(a Assignee) AssigneeKind {
	if a == nil {
		return AssigneeNone
	}
	return a.Kind()
}

// AssigneeSpec is the flat, serializable form of an Assignee.
type AssigneeSpec struct {
	Mode         AssigneeKind `json:"mode" yaml:"mode"`
	DepartmentID string       `json:"departmentId,omitempty" yaml:"departmentId,omitempty"`
	PositionID   string       `json:"positionId,omitempty" yaml:"positionId,omitempty"`
	Key          string       `json:"key,omitempty" yaml:"key,omitempty"`
}

// SpecOf flattens a into an AssigneeSpec.
func SpecOf(a Assignee) AssigneeSpec {
	switch v := a.(type) {
	case FixedAssignee:
		return AssigneeSpec{Mode: AssigneeFixed, DepartmentID: v.DepartmentID, PositionID: v.PositionID}
	case LookupFieldAssignee:
		return AssigneeSpec{Mode: AssigneeLookupField, Key: v.Key}
	case nil:
		return AssigneeSpec{}
	default:
		return AssigneeSpec{Mode: v.Kind()}
	}
}

// Assignee converts the AssigneeSpec back into the variant. An empty mode yields a
// nil Assignee.
func (s AssigneeSpec) Assignee() (Assignee, error) {
	switch s.Mode {
	case AssigneeNone:
		return nil, nil
	case AssigneeRequestor:
		return RequestorAssignee{}, nil
	case AssigneeRequestorDepartment:
		return RequestorDepartmentAssignee{}, nil
	case AssigneeFixed:
		if s.DepartmentID == "" {
			return nil, fmt.Errorf("fixed assignee requires a department")
		}
		return FixedAssignee{DepartmentID: s.DepartmentID, PositionID: s.PositionID}, nil
	case AssigneeLookupField:
		if s.Key == "" {
			return nil, fmt.Errorf("lookup-field assignee requires a key")
		}
		return LookupFieldAssignee{Key: s.Key}, nil
	default:
		return nil, fmt.Errorf("unknown assignee mode %q", s.Mode)
	}
}
