package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backend/internal/apperr"
	"backend/internal/authz"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateCustomerRequest struct {
	Name  string `json:"name" binding:"required"`
	Phone string `json:"phone"`
	Email string `json:"email" binding:"omitempty,email"`
}

type UpdateCustomerRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

type CustomerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

// --- Interface ---

type CustomerService interface {
	CreateCustomer(ctx context.Context, actor *authz.Actor, req CreateCustomerRequest) (CustomerResponse, error)
	GetCustomer(ctx context.Context, actor *authz.Actor, id string) (CustomerResponse, error)
	ListCustomers(ctx context.Context, actor *authz.Actor, search string, page, limit int) ([]CustomerResponse, int64, error)
	UpdateCustomer(ctx context.Context, actor *authz.Actor, id string, req UpdateCustomerRequest) (CustomerResponse, error)
}

type customerService struct {
	customerRepo repository.CustomerRepository
}

func NewCustomerService(customerRepo repository.CustomerRepository) CustomerService {
	return &customerService{customerRepo: customerRepo}
}

// --- Implementation ---

func toCustomerResponse(c model.Customer) CustomerResponse {
	resp := CustomerResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Phone:     c.Phone,
		Email:     c.Email,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
	if c.CreatedBy != nil {
		resp.CreatedBy = c.CreatedBy.String()
	}
	return resp
}

func (s *customerService) CreateCustomer(ctx context.Context, actor *authz.Actor, req CreateCustomerRequest) (CustomerResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return CustomerResponse{}, err
	}

	if strings.TrimSpace(req.Name) == "" {
		return CustomerResponse{}, fmt.Errorf("%w: customer name is required", apperr.ErrValidation)
	}

	customer := model.Customer{
		Name:      strings.TrimSpace(req.Name),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		CreatedBy: &actor.ProfileID,
	}
	if err := s.customerRepo.Create(ctx, &customer); err != nil {
		return CustomerResponse{}, fmt.Errorf("failed to create customer: %w", err)
	}

	return toCustomerResponse(customer), nil
}

func (s *customerService) GetCustomer(ctx context.Context, actor *authz.Actor, id string) (CustomerResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return CustomerResponse{}, err
	}

	customerID, err := uuid.Parse(id)
	if err != nil {
		return CustomerResponse{}, fmt.Errorf("%w: invalid customer id", apperr.ErrValidation)
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return CustomerResponse{}, fmt.Errorf("%w: customer %s", apperr.ErrNotFound, id)
	}

	return toCustomerResponse(*customer), nil
}

func (s *customerService) ListCustomers(ctx context.Context, actor *authz.Actor, search string, page, limit int) ([]CustomerResponse, int64, error) {
	if err := authz.Authorize(actor); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	customers, total, err := s.customerRepo.List(ctx, search, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch customers: %w", err)
	}

	result := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		result = append(result, toCustomerResponse(c))
	}
	return result, total, nil
}

// UpdateCustomer is the freeform admin edit; employees change customer
// fields only through the invoice edit workflow.
func (s *customerService) UpdateCustomer(ctx context.Context, actor *authz.Actor, id string, req UpdateCustomerRequest) (CustomerResponse, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return CustomerResponse{}, err
	}

	customerID, err := uuid.Parse(id)
	if err != nil {
		return CustomerResponse{}, fmt.Errorf("%w: invalid customer id", apperr.ErrValidation)
	}

	customer, err := s.customerRepo.FindByID(ctx, customerID)
	if err != nil {
		return CustomerResponse{}, fmt.Errorf("%w: customer %s", apperr.ErrNotFound, id)
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return CustomerResponse{}, fmt.Errorf("%w: customer name is required", apperr.ErrValidation)
		}
		customer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		customer.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		customer.Email = strings.TrimSpace(*req.Email)
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return CustomerResponse{}, fmt.Errorf("failed to update customer: %w", err)
	}

	return toCustomerResponse(*customer), nil
}
