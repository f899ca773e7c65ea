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

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateJobRequest struct {
	CustomerID       string `json:"customer_id" binding:"required"`
	VehicleID        string `json:"vehicle_id" binding:"required"`
	Description      string `json:"description" binding:"required"`
	Notes            string `json:"notes"`
	AssignedEmployee string `json:"assigned_employee"` // defaults to the acting profile
}

type JobFilter struct {
	Status string // pending, completed or empty for all
	Page   int
	Limit  int
}

type JobResponse struct {
	ID               string          `json:"id"`
	Description      string          `json:"description"`
	Cost             string          `json:"cost"`
	Status           string          `json:"status"`
	Notes            string          `json:"notes,omitempty"`
	CustomerID       string          `json:"customer_id"`
	VehicleID        string          `json:"vehicle_id"`
	AssignedEmployee string          `json:"assigned_employee"`
	CustomerName     string          `json:"customer_name,omitempty"`
	Registration     string          `json:"registration,omitempty"`
	VehicleModel     string          `json:"vehicle_model,omitempty"`
	EmployeeName     string          `json:"employee_name,omitempty"`
	Invoice          *InvoiceSummary `json:"invoice,omitempty"`
	CreatedAt        string          `json:"created_at"`
}

type InvoiceSummary struct {
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoice_number"`
	EditRequest   string `json:"edit_request"`
}

// --- Interface ---

// JobService owns the job side of the lifecycle: creation in pending with
// zero cost, and the one-way transition to completed. Cost is set only by
// invoice creation.
type JobService interface {
	CreateJob(ctx context.Context, actor *authz.Actor, req CreateJobRequest) (JobResponse, error)
	GetJob(ctx context.Context, actor *authz.Actor, id string) (JobResponse, error)
	ListJobs(ctx context.Context, actor *authz.Actor, filter JobFilter) ([]JobResponse, int64, error)
	MarkJobCompleted(ctx context.Context, actor *authz.Actor, id string) (JobResponse, error)
}

type jobService struct {
	jobRepo      repository.JobRepository
	customerRepo repository.CustomerRepository
	vehicleRepo  repository.VehicleRepository
	profileRepo  repository.ProfileRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
}

func NewJobService(
	jobRepo repository.JobRepository,
	customerRepo repository.CustomerRepository,
	vehicleRepo repository.VehicleRepository,
	profileRepo repository.ProfileRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) JobService {
	return &jobService{
		jobRepo:      jobRepo,
		customerRepo: customerRepo,
		vehicleRepo:  vehicleRepo,
		profileRepo:  profileRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
	}
}

// --- Implementation ---

func toJobResponse(j model.Job) JobResponse {
	resp := JobResponse{
		ID:               j.ID.String(),
		Description:      j.Description,
		Cost:             j.Cost.StringFixed(2),
		Status:           j.Status,
		Notes:            j.Notes,
		CustomerID:       j.CustomerID.String(),
		VehicleID:        j.VehicleID.String(),
		AssignedEmployee: j.AssignedEmployee.String(),
		CreatedAt:        j.CreatedAt.Format(time.RFC3339),
	}
	if j.Customer != nil {
		resp.CustomerName = j.Customer.Name
	}
	if j.Vehicle != nil {
		resp.Registration = j.Vehicle.Registration
		resp.VehicleModel = j.Vehicle.Model
	}
	if j.Employee != nil {
		resp.EmployeeName = j.Employee.Username
	}
	if j.Invoice != nil {
		resp.Invoice = &InvoiceSummary{
			ID:            j.Invoice.ID.String(),
			InvoiceNumber: j.Invoice.InvoiceNumber,
			EditRequest:   j.Invoice.EditRequest,
		}
	}
	return resp
}

func (s *jobService) CreateJob(ctx context.Context, actor *authz.Actor, req CreateJobRequest) (JobResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return JobResponse{}, err
	}

	if strings.TrimSpace(req.Description) == "" {
		return JobResponse{}, fmt.Errorf("%w: description is required", apperr.ErrValidation)
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return JobResponse{}, fmt.Errorf("%w: invalid customer_id", apperr.ErrValidation)
	}
	vehicleID, err := uuid.Parse(req.VehicleID)
	if err != nil {
		return JobResponse{}, fmt.Errorf("%w: invalid vehicle_id", apperr.ErrValidation)
	}

	if _, err := s.customerRepo.FindByID(ctx, customerID); err != nil {
		return JobResponse{}, fmt.Errorf("%w: customer does not exist", apperr.ErrValidation)
	}
	vehicle, err := s.vehicleRepo.FindByID(ctx, vehicleID)
	if err != nil {
		return JobResponse{}, fmt.Errorf("%w: vehicle does not exist", apperr.ErrValidation)
	}
	if vehicle.CustomerID != customerID {
		return JobResponse{}, fmt.Errorf("%w: vehicle does not belong to customer", apperr.ErrValidation)
	}

	assignee := actor.ProfileID
	if req.AssignedEmployee != "" {
		parsed, parseErr := uuid.Parse(req.AssignedEmployee)
		if parseErr != nil {
			return JobResponse{}, fmt.Errorf("%w: invalid assigned_employee", apperr.ErrValidation)
		}
		if _, err := s.profileRepo.GetByID(ctx, parsed); err != nil {
			return JobResponse{}, fmt.Errorf("%w: assigned employee does not exist", apperr.ErrValidation)
		}
		assignee = parsed
	}

	job := model.Job{
		CustomerID:       customerID,
		VehicleID:        vehicleID,
		AssignedEmployee: assignee,
		Description:      strings.TrimSpace(req.Description),
		Status:           model.JobStatusPending,
		Notes:            strings.TrimSpace(req.Notes),
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.jobRepo.Create(txCtx, &job); createErr != nil {
			return fmt.Errorf("failed to create job: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"customer_id": job.CustomerID.String(),
			"vehicle_id":  job.VehicleID.String(),
		})
		audit := &model.AuditLog{
			ProfileID:  &actor.ProfileID,
			Action:     model.ActionCreateJob,
			EntityID:   job.ID.String(),
			EntityName: job.Description,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Create(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return JobResponse{}, err
	}

	return toJobResponse(job), nil
}

func (s *jobService) GetJob(ctx context.Context, actor *authz.Actor, id string) (JobResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return JobResponse{}, err
	}

	jobID, err := uuid.Parse(id)
	if err != nil {
		return JobResponse{}, fmt.Errorf("%w: invalid job id", apperr.ErrValidation)
	}

	job, err := s.jobRepo.FindByIDWithRelations(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return JobResponse{}, fmt.Errorf("%w: job %s", apperr.ErrNotFound, id)
		}
		return JobResponse{}, fmt.Errorf("failed to fetch job: %w", err)
	}

	// Employees see only their own assignments
	if !actor.IsAdmin() && job.AssignedEmployee != actor.ProfileID {
		return JobResponse{}, fmt.Errorf("%w: job belongs to another employee", apperr.ErrAuthorization)
	}

	return toJobResponse(*job), nil
}

func (s *jobService) ListJobs(ctx context.Context, actor *authz.Actor, filter JobFilter) ([]JobResponse, int64, error) {
	if err := authz.Authorize(actor); err != nil {
		return nil, 0, err
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	repoFilter := repository.JobListFilter{
		Status: filter.Status,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if !actor.IsAdmin() {
		repoFilter.EmployeeID = &actor.ProfileID
	}

	jobs, total, err := s.jobRepo.List(ctx, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch jobs: %w", err)
	}

	result := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		result = append(result, toJobResponse(j))
	}
	return result, total, nil
}

// MarkJobCompleted transitions a job to completed without an invoice, e.g.
// employee-declared completion before invoicing. Idempotent: a second call
// on a completed job is a no-op.
func (s *jobService) MarkJobCompleted(ctx context.Context, actor *authz.Actor, id string) (JobResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return JobResponse{}, err
	}

	jobID, err := uuid.Parse(id)
	if err != nil {
		return JobResponse{}, fmt.Errorf("%w: invalid job id", apperr.ErrValidation)
	}

	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return JobResponse{}, fmt.Errorf("%w: job %s", apperr.ErrNotFound, id)
		}
		return JobResponse{}, fmt.Errorf("failed to fetch job: %w", err)
	}

	if job.Status == model.JobStatusCompleted {
		return toJobResponse(*job), nil
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		job.Status = model.JobStatusCompleted
		if updateErr := s.jobRepo.Update(txCtx, job); updateErr != nil {
			return fmt.Errorf("failed to update job: %w", updateErr)
		}

		audit := &model.AuditLog{
			ProfileID:  &actor.ProfileID,
			Action:     model.ActionCompleteJob,
			EntityID:   job.ID.String(),
			EntityName: job.Description,
		}
		if auditErr := s.auditRepo.Create(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return JobResponse{}, err
	}

	return toJobResponse(*job), nil
}
