package service

import (
	"context"
	"errors"
	"testing"

	"backend/internal/apperr"
)

func TestCreateAndGetCustomer(t *testing.T) {
	env := newTestEnv(t)
	_, worker := env.createProfile(t, "worker", "employee", true)
	ctx := context.Background()

	created, err := env.customers.CreateCustomer(ctx, worker, CreateCustomerRequest{
		Name:  "  Alice  ",
		Phone: "0612345678",
		Email: "alice@example.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Name != "Alice" {
		t.Errorf("name = %q, want trimmed Alice", created.Name)
	}
	if created.CreatedBy != worker.ProfileID.String() {
		t.Errorf("created_by = %q, want acting profile", created.CreatedBy)
	}

	fetched, err := env.customers.GetCustomer(ctx, worker, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fetched.Email != "alice@example.com" {
		t.Errorf("email = %q", fetched.Email)
	}
}

func TestListCustomersSearchByName(t *testing.T) {
	env := newTestEnv(t)
	_, worker := env.createProfile(t, "worker", "employee", true)
	env.createCustomer(t, "Alice Martin")
	env.createCustomer(t, "Bob Durand")
	ctx := context.Background()

	matches, total, err := env.customers.ListCustomers(ctx, worker, "alice", 1, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(matches) != 1 {
		t.Fatalf("got %d matches (total %d), want 1", len(matches), total)
	}
	if matches[0].Name != "Alice Martin" {
		t.Errorf("match = %q", matches[0].Name)
	}
}

func TestUpdateCustomerRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	customer := env.createCustomer(t, "Alice")
	ctx := context.Background()

	name := "Alice Renamed"
	if _, err := env.customers.UpdateCustomer(ctx, worker, customer.ID.String(), UpdateCustomerRequest{Name: &name}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("employee update err = %v, want ErrAuthorization", err)
	}

	updated, err := env.customers.UpdateCustomer(ctx, admin, customer.ID.String(), UpdateCustomerRequest{Name: &name})
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Name != name {
		t.Errorf("name = %q, want %q", updated.Name, name)
	}
}

func TestCreateVehicleRequiresExistingCustomer(t *testing.T) {
	env := newTestEnv(t)
	_, worker := env.createProfile(t, "worker", "employee", true)
	customer := env.createCustomer(t, "Alice")
	ctx := context.Background()

	if _, err := env.vehicles.CreateVehicle(ctx, worker, CreateVehicleRequest{
		CustomerID:   "00000000-0000-0000-0000-000000000001",
		Registration: "AB-123-CD",
		Model:        "Clio",
		Type:         "hatchback",
	}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown customer err = %v, want ErrNotFound", err)
	}

	vehicle, err := env.vehicles.CreateVehicle(ctx, worker, CreateVehicleRequest{
		CustomerID:   customer.ID.String(),
		Registration: "AB-123-CD",
		Model:        "Clio",
		Type:         "hatchback",
	})
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}

	owned, err := env.vehicles.ListVehiclesByCustomer(ctx, worker, customer.ID.String())
	if err != nil {
		t.Fatalf("list vehicles: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != vehicle.ID {
		t.Fatalf("owned = %+v, want the one created vehicle", owned)
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")
	ctx := context.Background()

	env.createJob(t, admin, customer, vehicle) // stays pending
	invoiced := env.createJob(t, admin, customer, vehicle)
	if _, err := env.invoices.CreateInvoice(ctx, admin, CreateInvoiceRequest{JobID: invoiced.ID, Cost: "150.00"}); err != nil {
		t.Fatalf("invoice: %v", err)
	}

	if _, err := env.stats.GetDashboardStats(ctx, worker); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("employee stats err = %v, want ErrAuthorization", err)
	}

	stats, err := env.stats.GetDashboardStats(ctx, admin)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalCustomers != 1 || stats.TotalVehicles != 1 {
		t.Errorf("customers/vehicles = %d/%d, want 1/1", stats.TotalCustomers, stats.TotalVehicles)
	}
	if stats.PendingJobs != 1 || stats.CompletedJobs != 1 {
		t.Errorf("pending/completed = %d/%d, want 1/1", stats.PendingJobs, stats.CompletedJobs)
	}
	if stats.ActiveEmployees != 2 {
		t.Errorf("active employees = %d, want 2", stats.ActiveEmployees)
	}
	if stats.TotalRevenue != "150.00" {
		t.Errorf("revenue = %q, want 150.00", stats.TotalRevenue)
	}
}
