package service

import (
	"context"
	"fmt"
	"testing"

	"backend/internal/authz"
	"backend/internal/model"
	"backend/internal/repository"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&model.Profile{},
		&model.RefreshToken{},
		&model.Customer{},
		&model.Vehicle{},
		&model.Job{},
		&model.Invoice{},
		&model.InvoiceEditRecord{},
		&model.AuditLog{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	db        *gorm.DB
	auth      AuthService
	customers CustomerService
	vehicles  VehicleService
	jobs      JobService
	invoices  InvoiceService
	audits    AuditService
	stats     StatisticsService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	profileRepo := repository.NewProfileRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	vehicleRepo := repository.NewVehicleRepository(db)
	jobRepo := repository.NewJobRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	txManager := repository.NewTransactionManager(db)

	return &testEnv{
		db:        db,
		auth:      NewAuthService(profileRepo, auditRepo),
		customers: NewCustomerService(customerRepo),
		vehicles:  NewVehicleService(vehicleRepo, customerRepo),
		jobs:      NewJobService(jobRepo, customerRepo, vehicleRepo, profileRepo, auditRepo, txManager),
		invoices:  NewInvoiceService(invoiceRepo, jobRepo, customerRepo, vehicleRepo, auditRepo, txManager, nil),
		audits:    NewAuditService(auditRepo),
		stats:     NewStatisticsService(customerRepo, vehicleRepo, jobRepo, profileRepo),
	}
}

func (e *testEnv) createProfile(t *testing.T, username, role string, active bool) (*model.Profile, *authz.Actor) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	profile := &model.Profile{
		Username: username,
		Password: string(hashed),
		Role:     role,
		IsActive: active,
	}
	if err := e.db.Create(profile).Error; err != nil {
		t.Fatalf("create profile %s: %v", username, err)
	}
	actor := &authz.Actor{
		ProfileID: profile.ID,
		Username:  profile.Username,
		Role:      authz.Role(profile.Role),
		IsActive:  profile.IsActive,
	}
	return profile, actor
}

func (e *testEnv) createCustomer(t *testing.T, name string) *model.Customer {
	t.Helper()
	customer := &model.Customer{Name: name, Phone: "0123456789"}
	if err := e.db.Create(customer).Error; err != nil {
		t.Fatalf("create customer %s: %v", name, err)
	}
	return customer
}

func (e *testEnv) createVehicle(t *testing.T, customer *model.Customer, registration string) *model.Vehicle {
	t.Helper()
	vehicle := &model.Vehicle{
		CustomerID:   customer.ID,
		Registration: registration,
		Model:        "Corolla",
		Type:         "sedan",
	}
	if err := e.db.Create(vehicle).Error; err != nil {
		t.Fatalf("create vehicle %s: %v", registration, err)
	}
	return vehicle
}

func (e *testEnv) createJob(t *testing.T, actor *authz.Actor, customer *model.Customer, vehicle *model.Vehicle) JobResponse {
	t.Helper()
	job, err := e.jobs.CreateJob(context.Background(), actor, CreateJobRequest{
		CustomerID:  customer.ID.String(),
		VehicleID:   vehicle.ID.String(),
		Description: "brake pad replacement",
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func (e *testEnv) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var count int64
	if err := e.db.Model(&model.AuditLog{}).Where("action = ?", action).Count(&count).Error; err != nil {
		t.Fatalf("count audit logs: %v", err)
	}
	return count
}
