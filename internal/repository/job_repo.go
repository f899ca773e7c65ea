package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobListFilter narrows job queries; zero values mean no filter.
type JobListFilter struct {
	Status     string
	EmployeeID *uuid.UUID
	Page       int
	Limit      int
}

type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Job, error)
	List(ctx context.Context, filter JobListFilter) ([]model.Job, int64, error)
	Update(ctx context.Context, job *model.Job) error
	CountByStatus(ctx context.Context, status string) (int64, error)
	SumCompletedCost(ctx context.Context) (float64, error)
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *model.Job) error {
	return GetDB(ctx, r.db).Create(job).Error
}

func (r *jobRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).
		Preload("Customer").
		Preload("Vehicle").
		Preload("Employee").
		Preload("Invoice").
		First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) List(ctx context.Context, filter JobListFilter) ([]model.Job, int64, error) {
	var jobs []model.Job
	var total int64

	db := GetDB(ctx, r.db)
	apply := func(q *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			q = q.Where("status = ?", filter.Status)
		}
		if filter.EmployeeID != nil {
			q = q.Where("assigned_employee = ?", *filter.EmployeeID)
		}
		return q
	}

	if err := apply(db.Model(&model.Job{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	fetch := apply(db.
		Preload("Customer").
		Preload("Vehicle").
		Preload("Employee").
		Preload("Invoice"))
	if err := fetch.Order("created_at desc").Offset(offset).Limit(filter.Limit).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

func (r *jobRepository) Update(ctx context.Context, job *model.Job) error {
	return GetDB(ctx, r.db).Save(job).Error
}

func (r *jobRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Job{}).Where("status = ?", status).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumCompletedCost totals the cost of all completed jobs for revenue stats.
func (r *jobRepository) SumCompletedCost(ctx context.Context) (float64, error) {
	var result struct {
		Total float64
	}
	err := GetDB(ctx, r.db).Model(&model.Job{}).
		Select("COALESCE(SUM(cost), 0) as total").
		Where("status = ?", model.JobStatusCompleted).
		Scan(&result).Error
	if err != nil {
		return 0, err
	}
	return result.Total, nil
}
