package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"backend/internal/apperr"
	"backend/internal/authz"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

var invoiceNumberPattern = regexp.MustCompile(`^INV-\d{8}-\d{5}$`)

func TestCreateInvoiceCompletesJobAndSetsCost(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")
	job := env.createJob(t, admin, customer, vehicle)

	invoice, err := env.invoices.CreateInvoice(context.Background(), admin, CreateInvoiceRequest{
		JobID: job.ID,
		Cost:  "249.90",
	})
	if err != nil {
		t.Fatalf("create invoice: %v", err)
	}

	if !invoiceNumberPattern.MatchString(invoice.InvoiceNumber) {
		t.Errorf("invoice number %q does not match INV-YYYYMMDD-NNNNN", invoice.InvoiceNumber)
	}
	if invoice.EditRequest != model.EditRequestNone {
		t.Errorf("edit_request = %q, want none", invoice.EditRequest)
	}

	var stored model.Job
	if err := env.db.First(&stored, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if stored.Status != model.JobStatusCompleted {
		t.Errorf("job status = %q, want completed", stored.Status)
	}
	if stored.Cost.StringFixed(2) != "249.90" {
		t.Errorf("job cost = %s, want 249.90", stored.Cost.StringFixed(2))
	}
}

func TestCreateInvoiceDuplicateJob(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")
	job := env.createJob(t, admin, customer, vehicle)

	if _, err := env.invoices.CreateInvoice(context.Background(), admin, CreateInvoiceRequest{JobID: job.ID, Cost: "100"}); err != nil {
		t.Fatalf("first invoice: %v", err)
	}

	_, err := env.invoices.CreateInvoice(context.Background(), admin, CreateInvoiceRequest{JobID: job.ID, Cost: "200"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}

	// The rejected duplicate must not have touched the job
	var stored model.Job
	if err := env.db.First(&stored, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if stored.Cost.StringFixed(2) != "100.00" {
		t.Errorf("job cost = %s, want 100.00", stored.Cost.StringFixed(2))
	}

	var count int64
	env.db.Model(&model.Invoice{}).Where("job_id = ?", job.ID).Count(&count)
	if count != 1 {
		t.Errorf("invoices for job = %d, want 1", count)
	}
}

func TestCreateInvoiceUnknownJob(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)

	_, err := env.invoices.CreateInvoice(context.Background(), admin, CreateInvoiceRequest{JobID: uuid.NewString(), Cost: "50"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCreateInvoiceRejectsBadCost(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")
	job := env.createJob(t, admin, customer, vehicle)

	for _, cost := range []string{"-10", "abc", ""} {
		if _, err := env.invoices.CreateInvoice(context.Background(), admin, CreateInvoiceRequest{JobID: job.ID, Cost: cost}); !errors.Is(err, apperr.ErrValidation) {
			t.Errorf("cost %q: err = %v, want ErrValidation", cost, err)
		}
	}
}

func TestInvoiceNumbersAreSequential(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	customer := env.createCustomer(t, "Alice")

	numbers := make(map[string]bool)
	for i := 0; i < 3; i++ {
		vehicle := env.createVehicle(t, customer, uuid.NewString()[:8])
		job := env.createJob(t, admin, customer, vehicle)
		invoice, err := env.invoices.CreateInvoice(context.Background(), admin, CreateInvoiceRequest{JobID: job.ID, Cost: "10"})
		if err != nil {
			t.Fatalf("invoice %d: %v", i, err)
		}
		if numbers[invoice.InvoiceNumber] {
			t.Fatalf("duplicate invoice number %s", invoice.InvoiceNumber)
		}
		numbers[invoice.InvoiceNumber] = true
	}
}

// brokenInvoiceLookup simulates a database failure on the duplicate check.
type brokenInvoiceLookup struct {
	repository.InvoiceRepository
	err error
}

func (b *brokenInvoiceLookup) FindByJobID(ctx context.Context, jobID uuid.UUID) (*model.Invoice, error) {
	return nil, b.err
}

func TestCreateInvoiceSurfacesLookupFailure(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")
	job := env.createJob(t, admin, customer, vehicle)

	lookupErr := errors.New("connection reset")
	invoiceRepo := &brokenInvoiceLookup{
		InvoiceRepository: repository.NewInvoiceRepository(env.db),
		err:               lookupErr,
	}
	invoices := NewInvoiceService(
		invoiceRepo,
		repository.NewJobRepository(env.db),
		repository.NewCustomerRepository(env.db),
		repository.NewVehicleRepository(env.db),
		repository.NewAuditRepository(env.db),
		repository.NewTransactionManager(env.db),
		nil,
	)

	_, err := invoices.CreateInvoice(context.Background(), admin, CreateInvoiceRequest{JobID: job.ID, Cost: "100"})
	if !errors.Is(err, lookupErr) {
		t.Fatalf("err = %v, want wrapped lookup failure", err)
	}
	if errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("lookup failure misreported as conflict: %v", err)
	}

	// The transaction rolled back: no invoice, job untouched
	var stored model.Job
	if err := env.db.First(&stored, "id = ?", job.ID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if stored.Status != model.JobStatusPending {
		t.Errorf("job status = %q, want pending", stored.Status)
	}
	var count int64
	env.db.Model(&model.Invoice{}).Where("job_id = ?", job.ID).Count(&count)
	if count != 0 {
		t.Errorf("invoices for job = %d, want 0", count)
	}
}

// issueInvoice runs the happy path up to an issued invoice.
func issueInvoice(t *testing.T, env *testEnv, admin *authz.Actor) InvoiceResponse {
	t.Helper()
	customer := env.createCustomer(t, "Alice")
	vehicle := env.createVehicle(t, customer, "AB-123-CD")
	job := env.createJob(t, admin, customer, vehicle)
	invoice, err := env.invoices.CreateInvoice(context.Background(), admin, CreateInvoiceRequest{JobID: job.ID, Cost: "300"})
	if err != nil {
		t.Fatalf("issue invoice: %v", err)
	}
	return invoice
}

func TestRequestInvoiceEditTwice(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	invoice := issueInvoice(t, env, admin)

	if _, err := env.invoices.RequestInvoiceEdit(context.Background(), worker, invoice.ID); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := env.invoices.RequestInvoiceEdit(context.Background(), worker, invoice.ID); !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("second request err = %v, want ErrInvalidState", err)
	}
}

func TestReviewInvoiceEditRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	invoice := issueInvoice(t, env, admin)

	if _, err := env.invoices.RequestInvoiceEdit(context.Background(), worker, invoice.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	_, err := env.invoices.ReviewInvoiceEdit(context.Background(), worker, invoice.ID, model.EditRequestApproved)
	if !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("employee review err = %v, want ErrAuthorization", err)
	}
}

func TestReviewInvoiceEditDeactivatedAdmin(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, locked := env.createProfile(t, "locked", "admin", false)
	_, worker := env.createProfile(t, "worker", "employee", true)
	invoice := issueInvoice(t, env, admin)

	if _, err := env.invoices.RequestInvoiceEdit(context.Background(), worker, invoice.ID); err != nil {
		t.Fatalf("request: %v", err)
	}

	// Deactivation is checked before the role, so a locked-out admin gets
	// the account error rather than an authorization error
	_, err := env.invoices.ReviewInvoiceEdit(context.Background(), locked, invoice.ID, model.EditRequestApproved)
	if !errors.Is(err, apperr.ErrAccountDeactivated) {
		t.Fatalf("err = %v, want ErrAccountDeactivated", err)
	}
}

func TestReviewInvoiceEditWithoutPendingRequest(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	invoice := issueInvoice(t, env, admin)

	_, err := env.invoices.ReviewInvoiceEdit(context.Background(), admin, invoice.ID, model.EditRequestApproved)
	if !errors.Is(err, apperr.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
}

func TestApprovalAllowsExactlyOneEmployeeEdit(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	invoice := issueInvoice(t, env, admin)
	ctx := context.Background()

	if _, err := env.invoices.RequestInvoiceEdit(ctx, worker, invoice.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := env.invoices.ReviewInvoiceEdit(ctx, admin, invoice.ID, model.EditRequestApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	newCost := "350"
	applied, err := env.invoices.ApplyInvoiceEdit(ctx, worker, invoice.ID, ApplyInvoiceEditRequest{Cost: &newCost})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if applied.EditRequest != model.EditRequestNone {
		t.Errorf("edit_request after apply = %q, want none", applied.EditRequest)
	}

	// The approval was consumed; a second employee edit needs a new cycle
	again := "400"
	_, err = env.invoices.ApplyInvoiceEdit(ctx, worker, invoice.ID, ApplyInvoiceEditRequest{Cost: &again})
	if !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("second apply err = %v, want ErrAuthorization", err)
	}
}

func TestRejectedRequestCanBeReRequested(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	invoice := issueInvoice(t, env, admin)
	ctx := context.Background()

	if _, err := env.invoices.RequestInvoiceEdit(ctx, worker, invoice.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	rejected, err := env.invoices.ReviewInvoiceEdit(ctx, admin, invoice.ID, model.EditRequestRejected)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.EditRequest != model.EditRequestRejected {
		t.Fatalf("edit_request = %q, want rejected", rejected.EditRequest)
	}

	// A rejected employee still cannot apply
	cost := "999"
	if _, err := env.invoices.ApplyInvoiceEdit(ctx, worker, invoice.ID, ApplyInvoiceEditRequest{Cost: &cost}); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("apply after reject err = %v, want ErrAuthorization", err)
	}

	requested, err := env.invoices.RequestInvoiceEdit(ctx, worker, invoice.ID)
	if err != nil {
		t.Fatalf("re-request after reject: %v", err)
	}
	if requested.EditRequest != model.EditRequestRequested {
		t.Errorf("edit_request = %q, want requested", requested.EditRequest)
	}
}

func TestAdminAppliesEditWithoutApproval(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	invoice := issueInvoice(t, env, admin)
	ctx := context.Background()

	name := "Alice Updated"
	registration := "XY-777-ZW"
	cost := "420.50"
	applied, err := env.invoices.ApplyInvoiceEdit(ctx, admin, invoice.ID, ApplyInvoiceEditRequest{
		Cost:         &cost,
		CustomerName: &name,
		Registration: &registration,
	})
	if err != nil {
		t.Fatalf("admin apply: %v", err)
	}
	if applied.EditRequest != model.EditRequestNone {
		t.Errorf("edit_request = %q, want none", applied.EditRequest)
	}

	var customer model.Customer
	if err := env.db.First(&customer, "name = ?", name).Error; err != nil {
		t.Errorf("customer rename not persisted: %v", err)
	}
	var vehicle model.Vehicle
	if err := env.db.First(&vehicle, "registration = ?", registration).Error; err != nil {
		t.Errorf("vehicle registration not persisted: %v", err)
	}
	var job model.Job
	if err := env.db.First(&job, "id = ?", invoice.JobID).Error; err != nil {
		t.Fatalf("reload job: %v", err)
	}
	if job.Cost.StringFixed(2) != "420.50" {
		t.Errorf("job cost = %s, want 420.50", job.Cost.StringFixed(2))
	}
}

func TestEditRecordsTraceTheFullCycle(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	_, worker := env.createProfile(t, "worker", "employee", true)
	invoice := issueInvoice(t, env, admin)
	ctx := context.Background()

	if _, err := env.invoices.RequestInvoiceEdit(ctx, worker, invoice.ID); err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := env.invoices.ReviewInvoiceEdit(ctx, admin, invoice.ID, model.EditRequestApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	cost := "310"
	if _, err := env.invoices.ApplyInvoiceEdit(ctx, worker, invoice.ID, ApplyInvoiceEditRequest{Cost: &cost}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	records, err := env.invoices.ListEditRecords(ctx, admin, invoice.ID)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	actions := make([]string, 0, len(records))
	for _, r := range records {
		actions = append(actions, r.Action)
	}
	want := []string{model.EditRecordRequested, model.EditRecordApproved, model.EditRecordApplied}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("actions = %v, want %v", actions, want)
		}
	}

	// The trail is admin-only
	if _, err := env.invoices.ListEditRecords(ctx, worker, invoice.ID); !errors.Is(err, apperr.ErrAuthorization) {
		t.Fatalf("employee list err = %v, want ErrAuthorization", err)
	}
}

func TestGetInvoiceByJob(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.createProfile(t, "admin", "admin", true)
	invoice := issueInvoice(t, env, admin)
	ctx := context.Background()

	fetched, err := env.invoices.GetInvoiceByJob(ctx, admin, invoice.JobID)
	if err != nil {
		t.Fatalf("get by job: %v", err)
	}
	if fetched.InvoiceNumber != invoice.InvoiceNumber {
		t.Errorf("invoice_number = %q, want %q", fetched.InvoiceNumber, invoice.InvoiceNumber)
	}
	if fetched.CustomerName == "" || fetched.Registration == "" {
		t.Errorf("detail fetch missing customer/vehicle data: %+v", fetched)
	}

	if _, err := env.invoices.GetInvoiceByJob(ctx, admin, uuid.NewString()); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown job err = %v, want ErrNotFound", err)
	}
}
