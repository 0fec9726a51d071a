package policy

import (
	"strings"

	"github.com/innovation-cell/research-portal-api/internal/models"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Allow Decision = iota
	Unauthenticated
	Forbidden
)

// Rule binds a path prefix to the roles allowed through it. An empty role
// list means any authenticated caller.
type Rule struct {
	Prefix string
	Roles  []models.UserRole
}

// Table is the canonical route policy. Earlier sources kept two diverging
// route tables; this single table is evaluated in order: public allowlist
// first, then the longest-prefix protected rule.
type Table struct {
	public    []string
	protected []Rule
}

// Default returns the portal's route policy table.
func Default() *Table {
	return &Table{
		public: []string{
			"/health",
			"/ready",
			"/metrics",
			"/docs",
			"/api/v1/auth/login",
			"/api/v1/auth/refresh",
			"/api/papers/published",
		},
		protected: []Rule{
			{Prefix: "/api/v1/admin", Roles: []models.UserRole{models.RoleAdmin}},
			// /api/v1/users is deliberately absent: GET /users/:id allows
			// self-access, so the route-level RBAC("ADMIN","SELF") checks
			// own the users prefix.
			{Prefix: "/api/v1/reports", Roles: []models.UserRole{models.RoleAdmin}},
			{Prefix: "/api/v1/review", Roles: []models.UserRole{models.RoleFaculty, models.RoleAdmin}},
			{Prefix: "/api/v1", Roles: nil},
		},
	}
}

// Authorize resolves the access decision for a path and an optional role.
// A nil role means the caller is unauthenticated.
func (t *Table) Authorize(path string, role *models.UserRole) Decision {
	path = normalize(path)

	for _, p := range t.public {
		if path == p || strings.HasPrefix(path, p+"/") {
			return Allow
		}
	}

	for _, rule := range t.protected {
		if path != rule.Prefix && !strings.HasPrefix(path, rule.Prefix+"/") {
			continue
		}
		if role == nil {
			return Unauthenticated
		}
		if len(rule.Roles) == 0 {
			return Allow
		}
		for _, allowed := range rule.Roles {
			if *role == allowed {
				return Allow
			}
		}
		// Admins pass every role-restricted prefix.
		if *role == models.RoleAdmin {
			return Allow
		}
		return Forbidden
	}

	if role == nil {
		return Unauthenticated
	}
	return Allow
}

func normalize(path string) string {
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
