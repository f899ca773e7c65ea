package service

import (
	"context"
	"errors"
	"testing"

	"backend/internal/apperr"
	"backend/internal/model"

	"github.com/google/uuid"
)

func TestCreateJobStartsPendingWithZeroCost(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")

	job := env.createJob(t, admin, customer, vehicle)

	if job.Status != model.JobStatusPending {
		t.Errorf("status = %q, want %q", job.Status, model.JobStatusPending)
	}
	if job.Cost != "0.00" {
		t.Errorf("cost = %q, want 0.00", job.Cost)
	}
	if job.AssignedEmployee != admin.ProfileID.String() {
		t.Errorf("assigned to %s, want acting profile %s", job.AssignedEmployee, admin.ProfileID)
	}
	if got := env.auditCount(t, model.ActionCreateJob); got != 1 {
		t.Errorf("audit rows = %d, want 1", got)
	}
}

func TestCreateJobUnknownCustomer(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)

	_, err := env.jobs.CreateJob(context.Background(), admin, CreateJobRequest{
		CustomerID:  uuid.NewString(),
		VehicleID:   uuid.NewString(),
		Description: "oil change",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateJobVehicleBelongsToOtherCustomer(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	alice := env.createCustomer(t, "Alice")
	bob := env.createCustomer(t, "Bob")
	bobsCar := env.createVehicle(t, bob, "ZZ-999-ZZ")

	_, err := env.jobs.CreateJob(context.Background(), admin, CreateJobRequest{
		CustomerID:  alice.ID.String(),
		VehicleID:   bobsCar.ID.String(),
		Description: "oil change",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateJobEmptyDescription(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")

	_, err := env.jobs.CreateJob(context.Background(), admin, CreateJobRequest{
		CustomerID:  customer.ID.String(),
		VehicleID:   vehicle.ID.String(),
		Description: "   ",
	})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCreateJobDeactivatedActor(t *testing.T) {
	env := newTestEnv(t)
	_, locked := env.createProfile(t, "locked", "admin", false)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")

	_, err := env.jobs.CreateJob(context.Background(), locked, CreateJobRequest{
		CustomerID:  customer.ID.String(),
		VehicleID:   vehicle.ID.String(),
		Description: "oil change",
	})
	if !errors.Is(err, apperr.ErrAccountDeactivated) {
		t.Fatalf("err = %v, want ErrAccountDeactivated", err)
	}
}

func TestGetJobScopedToAssignedEmployee(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	_, other := env.createProfile(t, "other", "employee", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")

	job := env.createJob(t, worker, customer, vehicle)

	if _, err := env.jobs.GetJob(context.Background(), worker, job.ID); err != nil {
		t.Fatalf("assignee fetch: %v", err)
	}
	if _, err := env.jobs.GetJob(context.Background(), admin, job.ID); err != nil {
		t.Fatalf("admin fetch: %v", err)
	}
	if _, err := env.jobs.GetJob(context.Background(), other, job.ID); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("other employee err = %v, want ErrAuthorization", err)
	}
}

func TestListJobsScopedToAssignedEmployee(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")

	env.createJob(t, worker, customer, vehicle)
	env.createJob(t, admin, customer, vehicle)

	all, total, err := env.jobs.ListJobs(context.Background(), admin, JobFilter{})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Errorf("admin sees %d jobs (total %d), want 2", len(all), total)
	}

	mine, total, err := env.jobs.ListJobs(context.Background(), worker, JobFilter{})
	if err != nil {
		t.Fatalf("employee list: %v", err)
	}
	if total != 1 || len(mine) != 1 {
		t.Fatalf("employee sees %d jobs (total %d), want 1", len(mine), total)
	}
	if mine[0].AssignedEmployee != worker.ProfileID.String() {
		t.Errorf("employee sees job assigned to %s", mine[0].AssignedEmployee)
	}
}

func TestMarkJobCompletedIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")
	job := env.createJob(t, admin, customer, vehicle)

	first, err := env.jobs.MarkJobCompleted(context.Background(), admin, job.ID)
	if err != nil {
		t.Fatalf("first complete: %v", err)
	}
	if first.Status != model.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", first.Status)
	}

	second, err := env.jobs.MarkJobCompleted(context.Background(), admin, job.ID)
	if err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if second.Status != model.JobStatusCompleted {
		t.Fatalf("status after repeat = %q, want completed", second.Status)
	}

	// The no-op repeat must not produce a second audit entry
	if got := env.auditCount(t, model.ActionCompleteJob); got != 1 {
		t.Errorf("audit rows = %d, want 1", got)
	}
}

func TestMarkJobCompletedUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)

	_, err := env.jobs.MarkJobCompleted(context.Background(), admin, uuid.NewString())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
