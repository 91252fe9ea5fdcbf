// Package pages holds the LMS page table and its server-side rendering.
// Every page under /dashboard is mounted behind the access gate.
package pages

import (
	"errors"
	"fmt"
	"strings"

	"lmsgate/internal/gate"
)

// DashboardPrefix is the root of the authenticated area.
const DashboardPrefix = "/dashboard"

// Roles used by the page table.
const (
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// ErrInvalidCatalog is returned when a page table cannot be mounted safely.
var ErrInvalidCatalog = errors.New("invalid page catalog")

// Section groups pages for navigation.
type Section string

const (
	SectionPublic    Section = "public"
	SectionDashboard Section = "dashboard"
)

// Page is one routed LMS page.
type Page struct {
	Path    string
	Title   string
	Heading string
	// Roles restricts a dashboard page to callers holding one of them.
	Roles []string
	// Courses shows the course-card list on the page.
	Courses bool
}

// Gated reports whether the page lives in the authenticated area.
func (p Page) Gated() bool {
	return p.Path == DashboardPrefix || strings.HasPrefix(p.Path, DashboardPrefix+"/")
}

// Section reports where the page belongs in navigation.
func (p Page) Section() Section {
	if p.Gated() {
		return SectionDashboard
	}
	return SectionPublic
}

// Requirement is what the gate checks before rendering the page.
func (p Page) Requirement() gate.Requirement {
	if len(p.Roles) == 0 {
		return gate.AnyAuthenticated()
	}
	return gate.RequireRoles(p.Roles...)
}

// Catalog returns the LMS page table.
func Catalog() []Page {
	return []Page{
		{Path: "/", Title: "LMS", Heading: "Welcome"},
		{Path: "/login", Title: "Sign in", Heading: "Sign in"},
		{Path: "/courses", Title: "Courses", Heading: "Course catalog", Courses: true},
		{Path: "/unauthorized", Title: "Access denied", Heading: "You do not have access to this page"},
		{Path: "/dashboard", Title: "Dashboard", Heading: "Dashboard"},
		{Path: "/dashboard/courses", Title: "My courses", Heading: "My courses", Courses: true},
		{Path: "/dashboard/assignments", Title: "Assignments", Heading: "Assignments"},
		{Path: "/dashboard/grades", Title: "Grades", Heading: "Grades"},
		{Path: "/dashboard/profile", Title: "Profile", Heading: "Profile"},
		{Path: "/dashboard/instructor", Title: "Instructor", Heading: "Instructor tools", Roles: []string{RoleInstructor, RoleAdmin}},
		{Path: "/dashboard/admin", Title: "Administration", Heading: "Administration", Roles: []string{RoleAdmin}},
	}
}

// Validate rejects page tables that could expose a page without a check:
// relative or duplicate paths, and role restrictions outside the dashboard.
func Validate(pages []Page) error {
	var errs []error
	seen := make(map[string]bool, len(pages))
	for _, p := range pages {
		if !strings.HasPrefix(p.Path, "/") {
			errs = append(errs, fmt.Errorf("%w: path %q is not absolute", ErrInvalidCatalog, p.Path))
			continue
		}
		if seen[p.Path] {
			errs = append(errs, fmt.Errorf("%w: duplicate path %q", ErrInvalidCatalog, p.Path))
		}
		seen[p.Path] = true
		if len(p.Roles) > 0 && !p.Gated() {
			errs = append(errs, fmt.Errorf("%w: %q restricts roles outside %s", ErrInvalidCatalog, p.Path, DashboardPrefix))
		}
	}
	return errors.Join(errs...)
}
