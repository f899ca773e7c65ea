package authz

import (
	"errors"
	"testing"

	"backend/internal/apperr"

	"github.com/google/uuid"
)

func TestAuthorize(t *testing.T) {
	admin := &Actor{ProfileID: uuid.New(), Username: "admin", Role: RoleAdmin, IsActive: true}
	worker := &Actor{ProfileID: uuid.New(), Username: "worker", Role: RoleEmployee, IsActive: true}
	lockedAdmin := &Actor{ProfileID: uuid.New(), Username: "locked", Role: RoleAdmin, IsActive: false}

	tests := []struct {
		name     string
		actor    *Actor
		required []Role
		want     error
	}{
		{"nil actor", nil, nil, apperr.ErrUnauthenticated},
		{"nil actor with role", nil, []Role{RoleAdmin}, apperr.ErrUnauthenticated},
		{"active admin any", admin, nil, nil},
		{"active employee any", worker, nil, nil},
		{"admin required, admin", admin, []Role{RoleAdmin}, nil},
		{"admin required, employee", worker, []Role{RoleAdmin}, apperr.ErrAuthorization},
		{"either role, employee", worker, []Role{RoleAdmin, RoleEmployee}, nil},
		// Deactivation wins over the role check: a locked admin must not
		// learn whether the role would have passed
		{"deactivated, no role", lockedAdmin, nil, apperr.ErrAccountDeactivated},
		{"deactivated, matching role", lockedAdmin, []Role{RoleAdmin}, apperr.ErrAccountDeactivated},
		{"deactivated, wrong role", lockedAdmin, []Role{RoleEmployee}, apperr.ErrAccountDeactivated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.actor, tt.required...)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Authorize() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Authorize() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleAdmin, RoleEmployee} {
		if !role.Valid() {
			t.Errorf("%q should be valid", role)
		}
	}
	for _, role := range []Role{"", "manager", "ADMIN"} {
		if role.Valid() {
			t.Errorf("%q should be invalid", role)
		}
	}
}
