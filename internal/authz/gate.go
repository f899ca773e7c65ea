// Package authz is the central authorization checkpoint. Every service
// operation with a role precondition runs the gate itself rather than
// trusting the HTTP middleware, so a caller reaching a service directly
// gets the same denials.
package authz

import (
	"backend/internal/apperr"

	"github.com/google/uuid"
)

// Role is the application role carried on a profile.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// Actor is the authenticated profile a service operation acts on behalf of.
// A nil *Actor means no authenticated profile.
type Actor struct {
	ProfileID uuid.UUID
	Username  string
	Role      Role
	IsActive  bool
}

// Authorize maps an actor plus optional required roles to an allow/deny
// decision. The deactivation check always runs before any role check.
func Authorize(actor *Actor, required ...Role) error {
	if actor == nil {
		return apperr.ErrUnauthenticated
	}
	if !actor.IsActive {
		return apperr.ErrAccountDeactivated
	}
	if len(required) == 0 {
		return nil
	}
	for _, role := range required {
		if actor.Role == role {
			return nil
		}
	}
	return apperr.ErrAuthorization
}

// IsAdmin is a convenience check used where admin bypasses a precondition.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}
