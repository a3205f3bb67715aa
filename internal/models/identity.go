package models

import (
	"errors"
	"strings"
)

// Role identifies which side of the classroom an identity belongs to.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ErrInvalidRole is returned when a role string is neither teacher nor student.
var ErrInvalidRole = errors.New("role must be teacher or student")

// ParseRole normalises a raw role value.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleTeacher:
		return RoleTeacher, nil
	case RoleStudent:
		return RoleStudent, nil
	default:
		return "", ErrInvalidRole
	}
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// Identity is the authenticated principal held for the lifetime of a device session.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// IsTeacher is a shorthand used by the navigation guards.
func (i Identity) IsTeacher() bool {
	return i.Role == RoleTeacher
}
