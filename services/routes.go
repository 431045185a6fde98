package services

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/lborres/shopfront/core"
)

// RouteRule guards the locations matching Pattern. Patterns are
// slash-separated; a segment is a literal, a ":name" parameter matching one
// segment, or a trailing "*" matching zero or more segments. An empty
// Roles means any authenticated principal.
type RouteRule struct {
	Pattern     string   `json:"pattern"`
	Roles       []string `json:"roles,omitempty"`
	Description string   `json:"description,omitempty"`
}

// BaseRoutes returns the guarded locations of the storefront and the
// admin console.
func BaseRoutes() []RouteRule {
	return []RouteRule{
		{
			Pattern:     "/admin/*",
			Roles:       []string{core.RoleAdmin},
			Description: "Admin console",
		},
		{
			Pattern:     "/my-orders",
			Description: "Order history of the signed-in user",
		},
		{
			Pattern:     "/orders/:id",
			Description: "Order detail",
		},
		{
			Pattern:     "/checkout",
			Description: "Checkout",
		},
		{
			Pattern:     "/profile",
			Description: "Profile and password",
		},
	}
}

// RouteRegistry holds guarded route rules and detects conflicting patterns.
// Two patterns conflict when they differ only in parameter names.
type RouteRegistry struct {
	mu    sync.RWMutex
	rules map[string]*RouteRule
}

// NewRouteRegistry creates a registry with BaseRoutes pre-registered.
func NewRouteRegistry() *RouteRegistry {
	reg := &RouteRegistry{rules: make(map[string]*RouteRule)}

	for _, rule := range BaseRoutes() {
		rule := rule
		reg.rules[patternKey(rule.Pattern)] = &rule
	}

	return reg
}

// Register adds rules. If any rule conflicts with a registered one or
// with another rule in the same batch, nothing is registered.
func (r *RouteRegistry) Register(rules []RouteRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]bool, len(rules))
	for i := range rules {
		if err := validatePattern(rules[i].Pattern); err != nil {
			return err
		}
		key := patternKey(rules[i].Pattern)

		if _, exists := r.rules[key]; exists {
			return fmt.Errorf("route conflict: %s already registered", rules[i].Pattern)
		}
		if seen[key] {
			return fmt.Errorf("route batch contains duplicate pattern: %s", rules[i].Pattern)
		}
		seen[key] = true
	}

	for i := range rules {
		rule := rules[i]
		r.rules[patternKey(rule.Pattern)] = &rule
	}

	return nil
}

// Rules returns every registered rule ordered by pattern.
func (r *RouteRegistry) Rules() []RouteRule {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]RouteRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, *rule)
	}
	slices.SortFunc(out, func(a, b RouteRule) int { return strings.Compare(a.Pattern, b.Pattern) })
	return out
}

// Match returns the most specific rule matching location. Query string,
// fragment and letter case are ignored. Literal segments beat parameters, which beat the
// wildcard.
func (r *RouteRegistry) Match(location string) (RouteRule, bool) {
	segments := splitPath(stripQuery(location))

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		best      *RouteRule
		bestScore []int
	)
	for _, rule := range r.rules {
		score, ok := matchPattern(splitPath(rule.Pattern), segments)
		if !ok {
			continue
		}
		if best == nil || slices.Compare(score, bestScore) > 0 {
			best, bestScore = rule, score
		}
	}

	if best == nil {
		return RouteRule{}, false
	}
	return *best, true
}

// Authorize resolves the rule for location and applies the guard. Locations
// no rule covers are public.
func (r *RouteRegistry) Authorize(snap core.SessionSnapshot, location string) Decision {
	rule, ok := r.Match(location)
	if !ok {
		if snap.State == core.SessionInitializing {
			return Decision{Kind: DecisionPending}
		}
		return Decision{Kind: DecisionAllow}
	}
	return Authorize(snap, location, rule.Roles...)
}

const (
	rankWildcard = iota + 1
	rankParam
	rankLiteral
)

func matchPattern(pattern, segments []string) ([]int, bool) {
	score := make([]int, 0, len(pattern))

	for i, p := range pattern {
		if p == "*" {
			return append(score, rankWildcard), true
		}
		if i >= len(segments) {
			return nil, false
		}
		switch {
		case strings.HasPrefix(p, ":"):
			score = append(score, rankParam)
		case p == segments[i]:
			score = append(score, rankLiteral)
		default:
			return nil, false
		}
	}

	if len(pattern) != len(segments) {
		return nil, false
	}
	return score, true
}

func validatePattern(pattern string) error {
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("route pattern %q must start with /", pattern)
	}
	segments := splitPath(pattern)
	for i, s := range segments {
		if s == "*" && i != len(segments)-1 {
			return fmt.Errorf("route pattern %q: wildcard must be the last segment", pattern)
		}
		if s == ":" {
			return fmt.Errorf("route pattern %q: unnamed parameter", pattern)
		}
	}
	return nil
}

// parameter names do not distinguish patterns
func patternKey(pattern string) string {
	segments := splitPath(pattern)
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			segments[i] = ":"
		}
	}
	return "/" + strings.Join(segments, "/")
}

// splitPath lowercases p; locations match case-insensitively.
func splitPath(p string) []string {
	p = strings.ToLower(strings.Trim(p, "/"))
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func stripQuery(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}
