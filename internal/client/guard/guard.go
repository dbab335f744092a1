// Package guard decides whether a navigation may proceed. Decisions are
// computed fresh from the session on every call; the package keeps no state
// of its own.
package guard

import (
	"context"
	"slices"
	"strings"

	"github.com/dmitrijs2005/entitykeeper/internal/common"
)

// Kind is the outcome of a navigation check.
type Kind int

const (
	Render Kind = iota
	RedirectToLogin
	RedirectToUnauthorized
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToUnauthorized:
		return "redirect-to-unauthorized"
	default:
		return "unknown"
	}
}

// Well-known paths.
const (
	PathHome         = "/"
	PathLogin        = "/login"
	PathSignup       = "/signup"
	PathUnauthorized = "/unauthorized"
	PathDashboard    = "/dashboard"
	PathSearch       = "/search"
	PathImportExport = "/import-export"
	PathProfile      = "/profile"
	PathReports      = "/reports"
)

// Decision is the result of Evaluate. From is the requested path and is set
// only for RedirectToLogin.
type Decision struct {
	Kind Kind
	From string
}

// Target is the path the navigation ends up on.
func (d Decision) Target(path string) string {
	switch d.Kind {
	case RedirectToLogin:
		return PathLogin
	case RedirectToUnauthorized:
		return PathUnauthorized
	default:
		return path
	}
}

// SessionReader is the read side of the session store.
type SessionReader interface {
	IsAuthenticated(ctx context.Context) bool
	Roles(ctx context.Context) []string
}

// Evaluate gates path for the current session. An empty required list admits
// any signed-in user; otherwise holding any one of the roles is enough.
func Evaluate(ctx context.Context, s SessionReader, path string, required []string) Decision {
	if !s.IsAuthenticated(ctx) {
		return Decision{Kind: RedirectToLogin, From: path}
	}
	if len(required) == 0 {
		return Decision{Kind: Render}
	}

	roles := s.Roles(ctx)
	for _, r := range required {
		if slices.Contains(roles, r) {
			return Decision{Kind: Render}
		}
	}
	return Decision{Kind: RedirectToUnauthorized}
}

// Resume is where to go after signing in from a login redirect.
func Resume(d Decision) string {
	if d.Kind == RedirectToLogin && d.From != "" && d.From != PathLogin {
		return d.From
	}
	return PathHome
}

// Route declares one navigable path.
type Route struct {
	Path          string
	Public        bool
	RequiredRoles []string
}

// Table resolves paths to routes. Unknown paths resolve to the home route.
type Table struct {
	routes map[string]Route
}

func NewTable(routes ...Route) *Table {
	t := &Table{routes: make(map[string]Route, len(routes))}
	for _, r := range routes {
		t.routes[normalize(r.Path)] = r
	}
	return t
}

// DefaultTable is the application's route map.
func DefaultTable() *Table {
	return NewTable(
		Route{Path: PathLogin, Public: true},
		Route{Path: PathSignup, Public: true},
		Route{Path: PathUnauthorized, Public: true},
		Route{Path: PathHome},
		Route{Path: PathDashboard},
		Route{Path: PathSearch},
		Route{Path: PathImportExport},
		Route{Path: PathProfile},
		Route{Path: PathReports, RequiredRoles: []string{common.RoleAdmin, common.RoleModerator}},
	)
}

// Lookup returns the route for path, falling back to home.
func (t *Table) Lookup(path string) Route {
	if r, ok := t.routes[normalize(path)]; ok {
		return r
	}
	return t.routes[PathHome]
}

func normalize(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// Guard applies a Table to a session.
type Guard struct {
	table   *Table
	session SessionReader
}

func New(table *Table, session SessionReader) *Guard {
	return &Guard{table: table, session: session}
}

// Decide resolves path and evaluates it. The returned route is the one that
// was checked, so callers can tell where an unknown path led.
func (g *Guard) Decide(ctx context.Context, path string) (Route, Decision) {
	r := g.table.Lookup(path)
	if r.Public {
		return r, Decision{Kind: Render}
	}
	return r, Evaluate(ctx, g.session, r.Path, r.RequiredRoles)
}
