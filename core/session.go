package core

import (
	"fmt"
	"slices"
)

// RoleAdmin is the role that unlocks the admin console.
const RoleAdmin = "Admin"

// Principal is the identity and role decoded from a credential.
// It is derived once per credential and never persisted.
type Principal struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// HasRole reports whether the principal's role is one of roles.
func (p Principal) HasRole(roles ...string) bool {
	return slices.Contains(roles, p.Role)
}

// SessionState is the session lifecycle state.
type SessionState int

const (
	SessionInitializing SessionState = iota
	SessionAnonymous
	SessionAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionInitializing:
		return "initializing"
	case SessionAnonymous:
		return "anonymous"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// SessionSnapshot is a consistent read of the session.
// Principal is nil unless State is SessionAuthenticated.
type SessionSnapshot struct {
	State     SessionState `json:"state"`
	Principal *Principal   `json:"principal,omitempty"`
}

// IsAdmin reports whether the snapshot is an authenticated admin.
func (s SessionSnapshot) IsAdmin() bool {
	return s.State == SessionAuthenticated && s.Principal != nil && s.Principal.Role == RoleAdmin
}
