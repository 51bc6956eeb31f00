// Package access decides which actor may perform which operation on which
// department-scoped record. Decide is pure: it never touches storage and
// never has side effects, so callers gate every mutation on it first.
package access

import (
	"fmt"

	"github.com/spec-kit/notification-service/internal/domain"
)

// Kind is the resource type being accessed.
type Kind string

const (
	KindDepartment   Kind = "department"
	KindUser         Kind = "user"
	KindNotification Kind = "notification"
)

// Operation is the requested action.
type Operation string

const (
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	// OpReassign moves a notification to another department.
	OpReassign Operation = "reassign"
)

// Request describes one authorization question.
type Request struct {
	Actor      *domain.Actor
	Kind       Kind
	Department string
	Op         Operation
	// TargetRole is the role of the user being read, created, updated or
	// deleted. Only meaningful for KindUser.
	TargetRole domain.Role
}

// Decision is the policy outcome. Reason is empty only when Allowed.
type Decision struct {
	Allowed bool
	Reason  string
}

const (
	ReasonNotAuthenticated = "not authenticated"
	ReasonNotAuthorized    = "not authorized"
	ReasonNoDepartment     = "your account is not assigned to a department"
	ReasonDepartmentAdmin  = "only super admins can manage departments"
	ReasonReassign         = "only super admins can change a notification's department"
	ReasonStudentsOnly     = "department admins can only manage students"
	ReasonStudentReadOnly  = "students have read-only access"
)

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Decide evaluates the rules in precedence order: unauthenticated, super
// admin, department admin, student, then deny.
func Decide(req Request) Decision {
	actor := req.Actor
	if !actor.Authenticated() {
		return deny(ReasonNotAuthenticated)
	}

	switch actor.Role {
	case domain.RoleSuperAdmin:
		return allow()
	case domain.RoleDeptAdmin:
		return decideDeptAdmin(actor, req)
	case domain.RoleStudent:
		return decideStudent(actor, req)
	}
	return deny(ReasonNotAuthorized)
}

func decideDeptAdmin(actor *domain.Actor, req Request) Decision {
	if actor.DepartmentID == "" {
		return deny(ReasonNoDepartment)
	}
	if req.Kind == KindNotification && req.Op == OpReassign {
		return deny(ReasonReassign)
	}
	if req.Kind == KindDepartment && req.Op != OpRead {
		return deny(ReasonDepartmentAdmin)
	}
	if req.Department != actor.DepartmentID {
		return deny(outOfScope(req))
	}
	if req.Kind == KindUser && req.TargetRole != domain.RoleStudent {
		return deny(ReasonStudentsOnly)
	}
	switch req.Kind {
	case KindDepartment, KindUser, KindNotification:
		return allow()
	}
	return deny(ReasonNotAuthorized)
}

func decideStudent(actor *domain.Actor, req Request) Decision {
	if actor.DepartmentID == "" {
		return deny(ReasonNoDepartment)
	}
	if req.Op != OpRead {
		return deny(ReasonStudentReadOnly)
	}
	if req.Department != actor.DepartmentID {
		return deny(outOfScope(req))
	}
	switch req.Kind {
	case KindDepartment, KindUser, KindNotification:
		return allow()
	}
	return deny(ReasonNotAuthorized)
}

func outOfScope(req Request) string {
	return fmt.Sprintf("not authorized to %s this %s outside your department", req.Op, req.Kind)
}
