package services

import (
	"strings"

	"github.com/lborres/shopfront/core"
)

// Navigation targets used by the guard.
const (
	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
	AdminHomePath    = "/admin/dashboard"
	HomePath         = "/"
)

type DecisionKind int

const (
	DecisionPending DecisionKind = iota
	DecisionAllow
	DecisionRedirect
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	default:
		return "unknown"
	}
}

func (k DecisionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Decision is the outcome of a guarded navigation. From is set on a
// redirect to the login page and carries the originally requested location.
type Decision struct {
	Kind   DecisionKind `json:"kind"`
	Target string       `json:"target,omitempty"`
	From   string       `json:"from,omitempty"`
}

// Authorize decides whether the session may view location. An empty
// requiredRoles means any authenticated principal.
func Authorize(snap core.SessionSnapshot, location string, requiredRoles ...string) Decision {
	switch snap.State {
	case core.SessionInitializing:
		return Decision{Kind: DecisionPending}
	case core.SessionAuthenticated:
		if snap.Principal == nil {
			break
		}
		if len(requiredRoles) > 0 && !snap.Principal.HasRole(requiredRoles...) {
			return Decision{Kind: DecisionRedirect, Target: UnauthorizedPath}
		}
		return Decision{Kind: DecisionAllow}
	}

	return Decision{Kind: DecisionRedirect, Target: LoginPath, From: location}
}

// PostLoginTarget is where to go after a successful login: back to from
// when the user was redirected to the login page, otherwise the role's home.
// Only locations inside the app are returned to.
func PostLoginTarget(principal core.Principal, from string) string {
	if localOrigin(from) {
		return from
	}
	if principal.Role == core.RoleAdmin {
		return AdminHomePath
	}
	return HomePath
}

// localOrigin reports whether from is an in-app path other than the login
// page. Scheme-relative and backslash forms are rejected since browsers
// resolve them to another host.
func localOrigin(from string) bool {
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") {
		return false
	}
	if strings.ContainsAny(from, "\\\r\n\t") {
		return false
	}
	return !strings.EqualFold(strings.TrimRight(stripQuery(from), "/"), LoginPath)
}
