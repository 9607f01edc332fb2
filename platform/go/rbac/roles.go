// Package rbac implements the static role hierarchy and the per-org
// permission override evaluator layered on top of it.
package rbac

import (
	"fmt"
)

// Role is one of the fixed organization roles.
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleBoardMember   Role = "board_member"
	RoleCommitteeLead Role = "committee_lead"
	RoleVolunteer     Role = "volunteer"
	RoleParentMember  Role = "parent_member"
	RoleTeacher       Role = "teacher"
)

// levels orders the hierarchy; parent_member and teacher share the lowest
// tier on purpose.
var levels = map[Role]int{
	RoleAdmin:         5,
	RoleBoardMember:   4,
	RoleCommitteeLead: 3,
	RoleVolunteer:     2,
	RoleParentMember:  1,
	RoleTeacher:       1,
}

// ParseRole validates a stored role string.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if _, ok := levels[role]; !ok {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// Level returns the role's position in the hierarchy; unknown roles rank
// below every valid one.
func (r Role) Level() int {
	return levels[r]
}

// AtLeast reports whether r outranks or equals required.
func (r Role) AtLeast(required Role) bool {
	return r.Level() >= required.Level()
}

// Valid reports whether r is a member of the fixed role set.
func (r Role) Valid() bool {
	_, ok := levels[r]
	return ok
}
