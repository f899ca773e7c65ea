package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByJobID(ctx context.Context, jobID uuid.UUID) (*model.Invoice, error)
	FindByJobIDWithDetails(ctx context.Context, jobID uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, editRequest string, page, limit int) ([]model.Invoice, int64, error)
	Update(ctx context.Context, invoice *model.Invoice) error
	CountByPrefix(ctx context.Context, prefix string) (int64, error)

	CreateEditRecord(ctx context.Context, record *model.InvoiceEditRecord) error
	ListEditRecords(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceEditRecord, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByJobID(ctx context.Context, jobID uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "job_id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// FindByJobIDWithDetails loads everything the printable invoice view needs.
func (r *invoiceRepository) FindByJobIDWithDetails(ctx context.Context, jobID uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).
		Preload("Job").
		Preload("Job.Customer").
		Preload("Job.Vehicle").
		Preload("Job.Employee").
		First(&invoice, "job_id = ?", jobID).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) List(ctx context.Context, editRequest string, page, limit int) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	db := GetDB(ctx, r.db)
	query := db.Model(&model.Invoice{})
	if editRequest != "" {
		query = query.Where("edit_request = ?", editRequest)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	fetch := db.Preload("Job").Preload("Job.Customer")
	if editRequest != "" {
		fetch = fetch.Where("edit_request = ?", editRequest)
	}
	if err := fetch.Order("created_at desc").Offset(offset).Limit(limit).Find(&invoices).Error; err != nil {
		return nil, 0, err
	}

	return invoices, total, nil
}

func (r *invoiceRepository) Update(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Save(invoice).Error
}

func (r *invoiceRepository) CountByPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.Invoice{}).Where("invoice_number LIKE ?", prefix+"%").Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *invoiceRepository) CreateEditRecord(ctx context.Context, record *model.InvoiceEditRecord) error {
	return GetDB(ctx, r.db).Create(record).Error
}

func (r *invoiceRepository) ListEditRecords(ctx context.Context, invoiceID uuid.UUID) ([]model.InvoiceEditRecord, error) {
	var records []model.InvoiceEditRecord
	if err := GetDB(ctx, r.db).
		Preload("Employee").
		Preload("Reviewer").
		Where("invoice_id = ?", invoiceID).
		Order("created_at asc").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
