package service

import (
	"context"
	"fmt"

	"backend/internal/authz"
	"backend/internal/model"
	"backend/internal/repository"
)

// DashboardStats are the admin dashboard counters plus total revenue
// (sum of completed job costs).
type DashboardStats struct {
	TotalCustomers  int64  `json:"total_customers"`
	TotalVehicles   int64  `json:"total_vehicles"`
	PendingJobs     int64  `json:"pending_jobs"`
	CompletedJobs   int64  `json:"completed_jobs"`
	ActiveEmployees int64  `json:"active_employees"`
	TotalRevenue    string `json:"total_revenue"`
}

type StatisticsService interface {
	GetDashboardStats(ctx context.Context, actor *authz.Actor) (DashboardStats, error)
}

type statisticsService struct {
	customerRepo repository.CustomerRepository
	vehicleRepo  repository.VehicleRepository
	jobRepo      repository.JobRepository
	profileRepo  repository.ProfileRepository
}

func NewStatisticsService(
	customerRepo repository.CustomerRepository,
	vehicleRepo repository.VehicleRepository,
	jobRepo repository.JobRepository,
	profileRepo repository.ProfileRepository,
) StatisticsService {
	return &statisticsService{
		customerRepo: customerRepo,
		vehicleRepo:  vehicleRepo,
		jobRepo:      jobRepo,
		profileRepo:  profileRepo,
	}
}

func (s *statisticsService) GetDashboardStats(ctx context.Context, actor *authz.Actor) (DashboardStats, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return DashboardStats{}, err
	}

	var stats DashboardStats
	var err error

	if stats.TotalCustomers, err = s.customerRepo.Count(ctx); err != nil {
		return DashboardStats{}, fmt.Errorf("failed to count customers: %w", err)
	}
	if stats.TotalVehicles, err = s.vehicleRepo.Count(ctx); err != nil {
		return DashboardStats{}, fmt.Errorf("failed to count vehicles: %w", err)
	}
	if stats.PendingJobs, err = s.jobRepo.CountByStatus(ctx, model.JobStatusPending); err != nil {
		return DashboardStats{}, fmt.Errorf("failed to count pending jobs: %w", err)
	}
	if stats.CompletedJobs, err = s.jobRepo.CountByStatus(ctx, model.JobStatusCompleted); err != nil {
		return DashboardStats{}, fmt.Errorf("failed to count completed jobs: %w", err)
	}
	if stats.ActiveEmployees, err = s.profileRepo.CountActive(ctx, ""); err != nil {
		return DashboardStats{}, fmt.Errorf("failed to count active profiles: %w", err)
	}

	revenue, err := s.jobRepo.SumCompletedCost(ctx)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("failed to sum revenue: %w", err)
	}
	stats.TotalRevenue = fmt.Sprintf("%.2f", revenue)

	return stats, nil
}
