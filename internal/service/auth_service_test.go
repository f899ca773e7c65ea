package service

import (
	"context"
	"errors"
	"testing"

	"backend/internal/apperr"
	"backend/internal/model"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.createProfile(t, "worker", "employee", true)
	ctx := context.Background()

	tokens, err := env.auth.Login(ctx, LoginRequest{Username: "worker", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tokens.Token == "" || tokens.RefreshToken == "" {
		t.Fatalf("empty tokens: %+v", tokens)
	}

	if _, err := env.auth.Login(ctx, LoginRequest{Username: "worker", Password: "wrong"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("wrong password err = %v, want ErrUnauthenticated", err)
	}
	if _, err := env.auth.Login(ctx, LoginRequest{Username: "ghost", Password: "password123"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("unknown user err = %v, want ErrUnauthenticated", err)
	}
}

func TestInactiveProfilePersistsAsInactive(t *testing.T) {
	env := newTestEnv(t)
	locked, _ := env.createProfile(t, "locked", "employee", false)

	// The inserted false flag must survive the write and the reload;
	// a column default must never override it
	var stored model.Profile
	if err := env.db.First(&stored, "id = ?", locked.ID).Error; err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if stored.IsActive {
		t.Fatalf("stored profile is active, want inactive")
	}

	actor, err := env.auth.ResolveActor(context.Background(), locked.ID.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if actor.IsActive {
		t.Fatalf("resolved actor is active, want inactive")
	}
}

func TestLoginDeactivatedProfile(t *testing.T) {
	env := newTestEnv(t)
	env.createProfile(t, "locked", "employee", false)

	_, err := env.auth.Login(context.Background(), LoginRequest{Username: "locked", Password: "password123"})
	if !errors.Is(err, apperr.ErrAccountDeactivated) {
		t.Fatalf("err = %v, want ErrAccountDeactivated", err)
	}
}

func TestRefreshTokenIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.createProfile(t, "worker", "employee", true)
	ctx := context.Background()

	tokens, err := env.auth.Login(ctx, LoginRequest{Username: "worker", Password: "password123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	rotated, err := env.auth.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if rotated.RefreshToken == tokens.RefreshToken {
		t.Errorf("refresh token was not rotated")
	}

	if _, err := env.auth.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: tokens.RefreshToken}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("reused token err = %v, want ErrUnauthenticated", err)
	}
}

func TestCreateEmployeeRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	ctx := context.Background()

	req := CreateEmployeeRequest{Username: "newhire", Password: "secret99", Role: "employee"}
	if _, err := env.auth.CreateEmployee(ctx, worker, req); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("employee create err = %v, want ErrAuthorization", err)
	}

	created, err := env.auth.CreateEmployee(ctx, admin, req)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if !created.IsActive {
		t.Errorf("new profile should start active")
	}

	if _, err := env.auth.CreateEmployee(ctx, admin, req); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate username err = %v, want ErrConflict", err)
	}
}

func TestDeactivationTakesEffectOnNextResolve(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	worker, _ := env.createProfile(t, "worker", "employee", true)
	ctx := context.Background()

	if _, err := env.auth.SetProfileActive(ctx, admin, worker.ID.String(), false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	actor, err := env.auth.ResolveActor(ctx, worker.ID.String())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if actor.IsActive {
		t.Fatalf("resolved actor still active after deactivation")
	}

	// Any operation through the resolved actor is now refused
	if _, _, err := env.jobs.ListJobs(ctx, actor, JobFilter{}); !errors.Is(err, apperr.ErrAccountDeactivated) {
		t.Fatalf("err = %v, want ErrAccountDeactivated", err)
	}

	if got := env.auditCount(t, model.ActionDeactivateProfile); got != 1 {
		t.Errorf("audit rows = %d, want 1", got)
	}
}

func TestSetProfileActiveIsIdempotentOnAudit(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	worker, _ := env.createProfile(t, "worker", "employee", true)
	ctx := context.Background()

	// Re-activating an already active profile writes no audit entry
	if _, err := env.auth.SetProfileActive(ctx, admin, worker.ID.String(), true); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if got := env.auditCount(t, model.ActionActivateProfile); got != 0 {
		t.Errorf("audit rows = %d, want 0", got)
	}
}
