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

type CreateVehicleRequest struct {
	CustomerID   string `json:"customer_id" binding:"required"`
	Registration string `json:"registration" binding:"required"`
	Model        string `json:"model" binding:"required"`
	Type         string `json:"type" binding:"required"`
}

type UpdateVehicleRequest struct {
	Registration *string `json:"registration"`
	Model        *string `json:"model"`
	Type         *string `json:"type"`
}

type VehicleResponse struct {
	ID           string `json:"id"`
	Registration string `json:"registration"`
	Model        string `json:"model"`
	Type         string `json:"type"`
	CustomerID   string `json:"customer_id"`
	CreatedAt    string `json:"created_at"`
}

// --- Interface ---

type VehicleService interface {
	CreateVehicle(ctx context.Context, actor *authz.Actor, req CreateVehicleRequest) (VehicleResponse, error)
	ListVehiclesByCustomer(ctx context.Context, actor *authz.Actor, customerID string) ([]VehicleResponse, error)
	UpdateVehicle(ctx context.Context, actor *authz.Actor, id string, req UpdateVehicleRequest) (VehicleResponse, error)
}

type vehicleService struct {
	vehicleRepo  repository.VehicleRepository
	customerRepo repository.CustomerRepository
}

func NewVehicleService(vehicleRepo repository.VehicleRepository, customerRepo repository.CustomerRepository) VehicleService {
	return &vehicleService{vehicleRepo: vehicleRepo, customerRepo: customerRepo}
}

// --- Implementation ---

func toVehicleResponse(v model.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:           v.ID.String(),
		Registration: v.Registration,
		Model:        v.Model,
		Type:         v.Type,
		CustomerID:   v.CustomerID.String(),
		CreatedAt:    v.CreatedAt.Format(time.RFC3339),
	}
}

func (s *vehicleService) CreateVehicle(ctx context.Context, actor *authz.Actor, req CreateVehicleRequest) (VehicleResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return VehicleResponse{}, err
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		return VehicleResponse{}, fmt.Errorf("%w: invalid customer_id", apperr.ErrValidation)
	}
	if strings.TrimSpace(req.Registration) == "" || strings.TrimSpace(req.Model) == "" || strings.TrimSpace(req.Type) == "" {
		return VehicleResponse{}, fmt.Errorf("%w: registration, model and type are required", apperr.ErrValidation)
	}

	if _, err := s.customerRepo.FindByID(ctx, customerID); err != nil {
		return VehicleResponse{}, fmt.Errorf("%w: customer %s", apperr.ErrNotFound, req.CustomerID)
	}

	vehicle := model.Vehicle{
		CustomerID:   customerID,
		Registration: strings.TrimSpace(req.Registration),
		Model:        strings.TrimSpace(req.Model),
		Type:         strings.TrimSpace(req.Type),
		CreatedBy:    &actor.ProfileID,
	}
	if err := s.vehicleRepo.Create(ctx, &vehicle); err != nil {
		return VehicleResponse{}, fmt.Errorf("failed to create vehicle: %w", err)
	}

	return toVehicleResponse(vehicle), nil
}

func (s *vehicleService) ListVehiclesByCustomer(ctx context.Context, actor *authz.Actor, customerID string) ([]VehicleResponse, error) {
	if err := authz.Authorize(actor); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid customer id", apperr.ErrValidation)
	}

	vehicles, err := s.vehicleRepo.ListByCustomer(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch vehicles: %w", err)
	}

	result := make([]VehicleResponse, 0, len(vehicles))
	for _, v := range vehicles {
		result = append(result, toVehicleResponse(v))
	}
	return result, nil
}

func (s *vehicleService) UpdateVehicle(ctx context.Context, actor *authz.Actor, id string, req UpdateVehicleRequest) (VehicleResponse, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return VehicleResponse{}, err
	}

	vehicleID, err := uuid.Parse(id)
	if err != nil {
		return VehicleResponse{}, fmt.Errorf("%w: invalid vehicle id", apperr.ErrValidation)
	}

	vehicle, err := s.vehicleRepo.FindByID(ctx, vehicleID)
	if err != nil {
		return VehicleResponse{}, fmt.Errorf("%w: vehicle %s", apperr.ErrNotFound, id)
	}

	if req.Registration != nil {
		vehicle.Registration = strings.TrimSpace(*req.Registration)
	}
	if req.Model != nil {
		vehicle.Model = strings.TrimSpace(*req.Model)
	}
	if req.Type != nil {
		vehicle.Type = strings.TrimSpace(*req.Type)
	}

	if err := s.vehicleRepo.Update(ctx, vehicle); err != nil {
		return VehicleResponse{}, fmt.Errorf("failed to update vehicle: %w", err)
	}

	return toVehicleResponse(*vehicle), nil
}
