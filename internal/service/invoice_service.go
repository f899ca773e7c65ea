package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend/internal/apperr"
	"backend/internal/authz"
	"backend/internal/model"
	"backend/internal/repository"
	ws "backend/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateInvoiceRequest struct {
	JobID       string `json:"job_id" binding:"required"`
	Cost        string `json:"cost" binding:"required"`
	Description string `json:"description"` // final description; keeps the job's when empty
	Notes       string `json:"notes"`
}

type ReviewInvoiceEditRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected"`
}

// ApplyInvoiceEditRequest carries the post-issuance field changes. The
// original edit screen saves job, customer and vehicle fields in one go,
// so the apply operation spans all three.
type ApplyInvoiceEditRequest struct {
	Description   *string `json:"description"`
	Cost          *string `json:"cost"`
	Notes         *string `json:"notes"`
	CustomerName  *string `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone"`
	CustomerEmail *string `json:"customer_email"`
	Registration  *string `json:"registration"`
	VehicleModel  *string `json:"vehicle_model"`
	VehicleType   *string `json:"vehicle_type"`
}

type InvoiceResponse struct {
	ID            string `json:"id"`
	JobID         string `json:"job_id"`
	InvoiceNumber string `json:"invoice_number"`
	Status        string `json:"status"`
	EditRequest   string `json:"edit_request"`
	CreatedAt     string `json:"created_at"`

	// Populated on detail fetches
	Description   string `json:"description,omitempty"`
	Cost          string `json:"cost,omitempty"`
	Notes         string `json:"notes,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Registration  string `json:"registration,omitempty"`
	VehicleModel  string `json:"vehicle_model,omitempty"`
	VehicleType   string `json:"vehicle_type,omitempty"`
	EmployeeName  string `json:"employee_name,omitempty"`
}

type EditRecordResponse struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	Employee   string `json:"employee,omitempty"`
	Reviewer   string `json:"reviewer,omitempty"`
	ReviewedAt string `json:"reviewed_at,omitempty"`
	Changes    string `json:"changes,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// --- Interface ---

// InvoiceService is the sole authority for invoice numbering and the
// edit-request state machine:
//
//	none -> requested -> approved -> none   (employee applies the edit)
//	        requested -> rejected -> requested (re-request is legal)
type InvoiceService interface {
	CreateInvoice(ctx context.Context, actor *authz.Actor, req CreateInvoiceRequest) (InvoiceResponse, error)
	GetInvoiceByJob(ctx context.Context, actor *authz.Actor, jobID string) (InvoiceResponse, error)
	ListInvoices(ctx context.Context, actor *authz.Actor, editRequest string, page, limit int) ([]InvoiceResponse, int64, error)
	RequestInvoiceEdit(ctx context.Context, actor *authz.Actor, invoiceID string) (InvoiceResponse, error)
	ReviewInvoiceEdit(ctx context.Context, actor *authz.Actor, invoiceID string, decision string) (InvoiceResponse, error)
	ApplyInvoiceEdit(ctx context.Context, actor *authz.Actor, invoiceID string, req ApplyInvoiceEditRequest) (InvoiceResponse, error)
	ListEditRecords(ctx context.Context, actor *authz.Actor, invoiceID string) ([]EditRecordResponse, error)
}

type invoiceService struct {
	invoiceRepo  repository.InvoiceRepository
	jobRepo      repository.JobRepository
	customerRepo repository.CustomerRepository
	vehicleRepo  repository.VehicleRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	hub          *ws.Hub
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	jobRepo repository.JobRepository,
	customerRepo repository.CustomerRepository,
	vehicleRepo repository.VehicleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) InvoiceService {
	return &invoiceService{
		invoiceRepo:  invoiceRepo,
		jobRepo:      jobRepo,
		customerRepo: customerRepo,
		vehicleRepo:  vehicleRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		hub:          hub,
	}
}

// --- Implementation ---

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            inv.ID.String(),
		JobID:         inv.JobID.String(),
		InvoiceNumber: inv.InvoiceNumber,
		Status:        inv.Status,
		EditRequest:   inv.EditRequest,
		CreatedAt:     inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.Job != nil {
		resp.Description = inv.Job.Description
		resp.Cost = inv.Job.Cost.StringFixed(2)
		resp.Notes = inv.Job.Notes
		if inv.Job.Customer != nil {
			resp.CustomerName = inv.Job.Customer.Name
			resp.CustomerPhone = inv.Job.Customer.Phone
			resp.CustomerEmail = inv.Job.Customer.Email
		}
		if inv.Job.Vehicle != nil {
			resp.Registration = inv.Job.Vehicle.Registration
			resp.VehicleModel = inv.Job.Vehicle.Model
			resp.VehicleType = inv.Job.Vehicle.Type
		}
		if inv.Job.Employee != nil {
			resp.EmployeeName = inv.Job.Employee.Username
		}
	}
	return resp
}

// CreateInvoice completes the job and creates its invoice in one
// transaction: job cost and status flip together with the invoice insert,
// so a failure leaves neither visible. The unique index on invoices.job_id
// is the backstop against a concurrent duplicate.
func (s *invoiceService) CreateInvoice(ctx context.Context, actor *authz.Actor, req CreateInvoiceRequest) (InvoiceResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return InvoiceResponse{}, err
	}

	jobID, err := uuid.Parse(req.JobID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("%w: invalid job_id", apperr.ErrValidation)
	}

	cost, err := decimal.NewFromString(req.Cost)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("%w: invalid cost: %v", apperr.ErrValidation, err)
	}
	if cost.IsNegative() {
		return InvoiceResponse{}, fmt.Errorf("%w: cost must not be negative", apperr.ErrValidation)
	}

	var invoice model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		job, findErr := s.jobRepo.FindByID(txCtx, jobID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: job %s", apperr.ErrNotFound, req.JobID)
			}
			return fmt.Errorf("failed to fetch job: %w", findErr)
		}

		if _, findInvErr := s.invoiceRepo.FindByJobID(txCtx, jobID); findInvErr == nil {
			return fmt.Errorf("%w: invoice already exists for job %s", apperr.ErrConflict, req.JobID)
		} else if !errors.Is(findInvErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing invoice: %w", findInvErr)
		}

		job.Cost = cost
		job.Status = model.JobStatusCompleted
		if strings.TrimSpace(req.Description) != "" {
			job.Description = strings.TrimSpace(req.Description)
		}
		if strings.TrimSpace(req.Notes) != "" {
			job.Notes = strings.TrimSpace(req.Notes)
		}
		if updateErr := s.jobRepo.Update(txCtx, job); updateErr != nil {
			return fmt.Errorf("failed to update job: %w", updateErr)
		}

		number, numErr := s.generateInvoiceNumber(txCtx)
		if numErr != nil {
			return fmt.Errorf("failed to generate invoice number: %w", numErr)
		}

		invoice = model.Invoice{
			JobID:         jobID,
			InvoiceNumber: number,
			Status:        model.InvoiceStatusPending,
			EditRequest:   model.EditRequestNone,
		}
		if createErr := s.invoiceRepo.Create(txCtx, &invoice); createErr != nil {
			if errors.Is(createErr, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: invoice already exists for job %s", apperr.ErrConflict, req.JobID)
			}
			return fmt.Errorf("failed to create invoice: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"invoice_number": number,
			"job_id":         jobID.String(),
			"cost":           cost.StringFixed(2),
		})
		audit := &model.AuditLog{
			ProfileID:  &actor.ProfileID,
			Action:     model.ActionCreateInvoice,
			EntityID:   invoice.ID.String(),
			EntityName: number,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Create(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	return toInvoiceResponse(invoice), nil
}

func (s *invoiceService) GetInvoiceByJob(ctx context.Context, actor *authz.Actor, jobID string) (InvoiceResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return InvoiceResponse{}, err
	}

	parsed, err := uuid.Parse(jobID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("%w: invalid job id", apperr.ErrValidation)
	}

	invoice, err := s.invoiceRepo.FindByJobIDWithDetails(ctx, parsed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvoiceResponse{}, fmt.Errorf("%w: no invoice for job %s", apperr.ErrNotFound, jobID)
		}
		return InvoiceResponse{}, fmt.Errorf("failed to fetch invoice: %w", err)
	}

	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, actor *authz.Actor, editRequest string, page, limit int) ([]InvoiceResponse, int64, error) {
	if err := authz.Authorize(actor); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	invoices, total, err := s.invoiceRepo.List(ctx, editRequest, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	result := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, toInvoiceResponse(inv))
	}
	return result, total, nil
}

// RequestInvoiceEdit asks for permission to modify a completed job's
// invoice. Legal only from none or rejected; a request already under
// review or already approved cannot be re-requested.
func (s *invoiceService) RequestInvoiceEdit(ctx context.Context, actor *authz.Actor, invoiceID string) (InvoiceResponse, error) {
	if err := authz.Authorize(actor, authz.RoleEmployee, authz.RoleAdmin); err != nil {
		return InvoiceResponse{}, err
	}

	parsed, err := uuid.Parse(invoiceID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("%w: invalid invoice id", apperr.ErrValidation)
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByID(txCtx, parsed)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: invoice %s", apperr.ErrNotFound, invoiceID)
			}
			return fmt.Errorf("failed to fetch invoice: %w", findErr)
		}

		if invoice.EditRequest != model.EditRequestNone && invoice.EditRequest != model.EditRequestRejected {
			return fmt.Errorf("%w: edit request is already %s", apperr.ErrInvalidState, invoice.EditRequest)
		}

		invoice.EditRequest = model.EditRequestRequested
		if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
			return fmt.Errorf("failed to update invoice: %w", updateErr)
		}

		record := &model.InvoiceEditRecord{
			InvoiceID:  invoice.ID,
			EmployeeID: &actor.ProfileID,
			Action:     model.EditRecordRequested,
		}
		if recErr := s.invoiceRepo.CreateEditRecord(txCtx, record); recErr != nil {
			return fmt.Errorf("failed to record edit request: %w", recErr)
		}

		audit := &model.AuditLog{
			ProfileID:  &actor.ProfileID,
			Action:     model.ActionRequestInvoiceEdit,
			EntityID:   invoice.ID.String(),
			EntityName: invoice.InvoiceNumber,
		}
		if auditErr := s.auditRepo.Create(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.notify("invoice_edit_requested", invoice, actor)

	return toInvoiceResponse(*invoice), nil
}

// ReviewInvoiceEdit is the admin decision on a pending edit request.
func (s *invoiceService) ReviewInvoiceEdit(ctx context.Context, actor *authz.Actor, invoiceID string, decision string) (InvoiceResponse, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return InvoiceResponse{}, err
	}

	var newState, recordAction, auditAction string
	switch decision {
	case model.EditRequestApproved:
		newState, recordAction, auditAction = model.EditRequestApproved, model.EditRecordApproved, model.ActionApproveInvoiceEdit
	case model.EditRequestRejected:
		newState, recordAction, auditAction = model.EditRequestRejected, model.EditRecordRejected, model.ActionRejectInvoiceEdit
	default:
		return InvoiceResponse{}, fmt.Errorf("%w: decision must be approved or rejected", apperr.ErrValidation)
	}

	parsed, err := uuid.Parse(invoiceID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("%w: invalid invoice id", apperr.ErrValidation)
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByID(txCtx, parsed)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: invoice %s", apperr.ErrNotFound, invoiceID)
			}
			return fmt.Errorf("failed to fetch invoice: %w", findErr)
		}

		if invoice.EditRequest != model.EditRequestRequested {
			return fmt.Errorf("%w: no pending edit request (state is %s)", apperr.ErrInvalidState, invoice.EditRequest)
		}

		invoice.EditRequest = newState
		if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
			return fmt.Errorf("failed to update invoice: %w", updateErr)
		}

		now := time.Now()
		record := &model.InvoiceEditRecord{
			InvoiceID:  invoice.ID,
			Action:     recordAction,
			ReviewedBy: &actor.ProfileID,
			ReviewedAt: &now,
		}
		if recErr := s.invoiceRepo.CreateEditRecord(txCtx, record); recErr != nil {
			return fmt.Errorf("failed to record review: %w", recErr)
		}

		audit := &model.AuditLog{
			ProfileID:  &actor.ProfileID,
			Action:     auditAction,
			EntityID:   invoice.ID.String(),
			EntityName: invoice.InvoiceNumber,
		}
		if auditErr := s.auditRepo.Create(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	s.notify("invoice_edit_reviewed", invoice, actor)

	return toInvoiceResponse(*invoice), nil
}

// ApplyInvoiceEdit mutates job, customer and vehicle fields behind an
// invoice. Admins may apply at any time; an employee needs an approved edit
// request, and a successful apply burns the approval (edit_request returns
// to none) so one approval allows exactly one edit.
func (s *invoiceService) ApplyInvoiceEdit(ctx context.Context, actor *authz.Actor, invoiceID string, req ApplyInvoiceEditRequest) (InvoiceResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return InvoiceResponse{}, err
	}

	parsed, err := uuid.Parse(invoiceID)
	if err != nil {
		return InvoiceResponse{}, fmt.Errorf("%w: invalid invoice id", apperr.ErrValidation)
	}

	var cost *decimal.Decimal
	if req.Cost != nil {
		parsedCost, costErr := decimal.NewFromString(*req.Cost)
		if costErr != nil {
			return InvoiceResponse{}, fmt.Errorf("%w: invalid cost: %v", apperr.ErrValidation, costErr)
		}
		if parsedCost.IsNegative() {
			return InvoiceResponse{}, fmt.Errorf("%w: cost must not be negative", apperr.ErrValidation)
		}
		cost = &parsedCost
	}

	var invoice *model.Invoice
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.invoiceRepo.FindByID(txCtx, parsed)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: invoice %s", apperr.ErrNotFound, invoiceID)
			}
			return fmt.Errorf("failed to fetch invoice: %w", findErr)
		}

		if !actor.IsAdmin() && invoice.EditRequest != model.EditRequestApproved {
			return fmt.Errorf("%w: invoice edit not approved", apperr.ErrAuthorization)
		}

		job, jobErr := s.jobRepo.FindByID(txCtx, invoice.JobID)
		if jobErr != nil {
			return fmt.Errorf("failed to fetch job: %w", jobErr)
		}

		if req.Description != nil {
			if strings.TrimSpace(*req.Description) == "" {
				return fmt.Errorf("%w: description must not be empty", apperr.ErrValidation)
			}
			job.Description = strings.TrimSpace(*req.Description)
		}
		if cost != nil {
			job.Cost = *cost
		}
		if req.Notes != nil {
			job.Notes = strings.TrimSpace(*req.Notes)
		}
		if updateErr := s.jobRepo.Update(txCtx, job); updateErr != nil {
			return fmt.Errorf("failed to update job: %w", updateErr)
		}

		if req.CustomerName != nil || req.CustomerPhone != nil || req.CustomerEmail != nil {
			customer, custErr := s.customerRepo.FindByID(txCtx, job.CustomerID)
			if custErr != nil {
				return fmt.Errorf("failed to fetch customer: %w", custErr)
			}
			if req.CustomerName != nil {
				if strings.TrimSpace(*req.CustomerName) == "" {
					return fmt.Errorf("%w: customer name must not be empty", apperr.ErrValidation)
				}
				customer.Name = strings.TrimSpace(*req.CustomerName)
			}
			if req.CustomerPhone != nil {
				customer.Phone = strings.TrimSpace(*req.CustomerPhone)
			}
			if req.CustomerEmail != nil {
				customer.Email = strings.TrimSpace(*req.CustomerEmail)
			}
			if updateErr := s.customerRepo.Update(txCtx, customer); updateErr != nil {
				return fmt.Errorf("failed to update customer: %w", updateErr)
			}
		}

		if req.Registration != nil || req.VehicleModel != nil || req.VehicleType != nil {
			vehicle, vehErr := s.vehicleRepo.FindByID(txCtx, job.VehicleID)
			if vehErr != nil {
				return fmt.Errorf("failed to fetch vehicle: %w", vehErr)
			}
			if req.Registration != nil {
				vehicle.Registration = strings.TrimSpace(*req.Registration)
			}
			if req.VehicleModel != nil {
				vehicle.Model = strings.TrimSpace(*req.VehicleModel)
			}
			if req.VehicleType != nil {
				vehicle.Type = strings.TrimSpace(*req.VehicleType)
			}
			if updateErr := s.vehicleRepo.Update(txCtx, vehicle); updateErr != nil {
				return fmt.Errorf("failed to update vehicle: %w", updateErr)
			}
		}

		// An employee's apply closes the approval window
		if !actor.IsAdmin() {
			invoice.EditRequest = model.EditRequestNone
			if updateErr := s.invoiceRepo.Update(txCtx, invoice); updateErr != nil {
				return fmt.Errorf("failed to update invoice: %w", updateErr)
			}
		}

		changes, _ := json.Marshal(req)
		record := &model.InvoiceEditRecord{
			InvoiceID:        invoice.ID,
			EmployeeID:       &actor.ProfileID,
			Action:           model.EditRecordApplied,
			RequestedChanges: string(changes),
		}
		if recErr := s.invoiceRepo.CreateEditRecord(txCtx, record); recErr != nil {
			return fmt.Errorf("failed to record applied edit: %w", recErr)
		}

		audit := &model.AuditLog{
			ProfileID:  &actor.ProfileID,
			Action:     model.ActionApplyInvoiceEdit,
			EntityID:   invoice.ID.String(),
			EntityName: invoice.InvoiceNumber,
			Details:    string(changes),
		}
		if auditErr := s.auditRepo.Create(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	return toInvoiceResponse(*invoice), nil
}

func (s *invoiceService) ListEditRecords(ctx context.Context, actor *authz.Actor, invoiceID string) ([]EditRecordResponse, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(invoiceID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid invoice id", apperr.ErrValidation)
	}

	records, err := s.invoiceRepo.ListEditRecords(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch edit records: %w", err)
	}

	result := make([]EditRecordResponse, 0, len(records))
	for _, r := range records {
		resp := EditRecordResponse{
			ID:        r.ID.String(),
			Action:    r.Action,
			Changes:   r.RequestedChanges,
			CreatedAt: r.CreatedAt.Format(time.RFC3339),
		}
		if r.Employee != nil {
			resp.Employee = r.Employee.Username
		}
		if r.Reviewer != nil {
			resp.Reviewer = r.Reviewer.Username
		}
		if r.ReviewedAt != nil {
			resp.ReviewedAt = r.ReviewedAt.Format(time.RFC3339)
		}
		result = append(result, resp)
	}
	return result, nil
}

// generateInvoiceNumber issues INV-YYYYMMDD-NNNNN, sequential within the
// day. Runs inside the caller's transaction; the unique index on
// invoice_number catches the rare concurrent collision.
func (s *invoiceService) generateInvoiceNumber(ctx context.Context) (string, error) {
	today := time.Now().Format("20060102")
	prefix := "INV-" + today + "-"

	count, err := s.invoiceRepo.CountByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%05d", prefix, count+1), nil
}

func (s *invoiceService) notify(event string, invoice *model.Invoice, actor *authz.Actor) {
	if s.hub == nil || invoice == nil {
		return
	}
	payload, err := json.Marshal(map[string]interface{}{
		"type":           event,
		"invoice_id":     invoice.ID.String(),
		"invoice_number": invoice.InvoiceNumber,
		"edit_request":   invoice.EditRequest,
		"actor":          actor.Username,
	})
	if err != nil {
		return
	}
	s.hub.Broadcast <- payload
}
