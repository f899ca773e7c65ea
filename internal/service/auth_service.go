package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/apperr"
	"backend/internal/authz"
	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type CreateEmployeeRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=admin employee"`
}

type ProfileResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// --- Interface ---

// AuthService authenticates staff and manages their profiles. Role is set
// once at account creation and never updated afterwards.
type AuthService interface {
	Login(ctx context.Context, req LoginRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	ResolveActor(ctx context.Context, profileID string) (*authz.Actor, error)
	GetProfile(ctx context.Context, id string) (*ProfileResponse, error)

	CreateEmployee(ctx context.Context, actor *authz.Actor, req CreateEmployeeRequest) (*ProfileResponse, error)
	ListProfiles(ctx context.Context, actor *authz.Actor, role string, page, limit int) ([]ProfileResponse, int64, error)
	SetProfileActive(ctx context.Context, actor *authz.Actor, id string, active bool) (*ProfileResponse, error)
}

type authService struct {
	profileRepo repository.ProfileRepository
	auditRepo   repository.AuditRepository
}

func NewAuthService(profileRepo repository.ProfileRepository, auditRepo repository.AuditRepository) AuthService {
	return &authService{profileRepo: profileRepo, auditRepo: auditRepo}
}

// --- Implementation ---

func toProfileResponse(p *model.Profile) *ProfileResponse {
	return &ProfileResponse{
		ID:        p.ID.String(),
		Username:  p.Username,
		Role:      p.Role,
		IsActive:  p.IsActive,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	profile, err := s.profileRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.Password), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid username or password", apperr.ErrUnauthenticated)
	}

	// Deactivated accounts are refused at the door, before any token is cut
	if !profile.IsActive {
		return nil, fmt.Errorf("%w: profile %s", apperr.ErrAccountDeactivated, profile.Username)
	}

	return s.issueTokens(ctx, profile)
}

func (s *authService) issueTokens(ctx context.Context, profile *model.Profile) (*TokenResponse, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  profile.ID.String(),
		"role": profile.Role,
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(middleware.GetJWTSecret())
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refresh := &model.RefreshToken{
		ProfileID: profile.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := s.profileRepo.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{Token: tokenString, RefreshToken: refresh.Token}, nil
}

func (s *authService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	stored, err := s.profileRepo.GetRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown refresh token", apperr.ErrUnauthenticated)
	}

	if time.Now().After(stored.ExpiresAt) {
		_ = s.profileRepo.DeleteRefreshToken(ctx, stored.Token)
		return nil, fmt.Errorf("%w: refresh token expired", apperr.ErrUnauthenticated)
	}

	profile, err := s.profileRepo.GetByID(ctx, stored.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("%w: profile gone", apperr.ErrUnauthenticated)
	}
	if !profile.IsActive {
		return nil, fmt.Errorf("%w: profile %s", apperr.ErrAccountDeactivated, profile.Username)
	}

	// Rotate: old token is single use
	if err := s.profileRepo.DeleteRefreshToken(ctx, stored.Token); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	return s.issueTokens(ctx, profile)
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.profileRepo.DeleteRefreshToken(ctx, refreshToken)
}

// ResolveActor loads the current profile state for a token subject so every
// operation sees up-to-date role and active status, not the values baked
// into the JWT at login time.
func (s *authService) ResolveActor(ctx context.Context, profileID string) (*authz.Actor, error) {
	id, err := uuid.Parse(profileID)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid profile id", apperr.ErrUnauthenticated)
	}

	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: profile not found", apperr.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	return &authz.Actor{
		ProfileID: profile.ID,
		Username:  profile.Username,
		Role:      authz.Role(profile.Role),
		IsActive:  profile.IsActive,
	}, nil
}

func (s *authService) GetProfile(ctx context.Context, id string) (*ProfileResponse, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid profile id", apperr.ErrValidation)
	}
	profile, err := s.profileRepo.GetByID(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: profile %s", apperr.ErrNotFound, id)
	}
	return toProfileResponse(profile), nil
}

func (s *authService) CreateEmployee(ctx context.Context, actor *authz.Actor, req CreateEmployeeRequest) (*ProfileResponse, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return nil, err
	}

	if !authz.Role(req.Role).Valid() {
		return nil, fmt.Errorf("%w: role must be admin or employee", apperr.ErrValidation)
	}

	if _, err := s.profileRepo.GetByUsername(ctx, req.Username); err == nil {
		return nil, fmt.Errorf("%w: username already exists", apperr.ErrConflict)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	profile := &model.Profile{
		Username: req.Username,
		Password: string(hashed),
		Role:     req.Role,
		IsActive: true,
	}
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return toProfileResponse(profile), nil
}

func (s *authService) ListProfiles(ctx context.Context, actor *authz.Actor, role string, page, limit int) ([]ProfileResponse, int64, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	profiles, total, err := s.profileRepo.List(ctx, role, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch profiles: %w", err)
	}

	res := make([]ProfileResponse, 0, len(profiles))
	for _, p := range profiles {
		res = append(res, *toProfileResponse(&p))
	}
	return res, total, nil
}

// SetProfileActive toggles whether an account can access the system at all.
// Deactivation takes effect on the target's next request because actors are
// resolved from the database, not from JWT claims.
func (s *authService) SetProfileActive(ctx context.Context, actor *authz.Actor, id string, active bool) (*ProfileResponse, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid profile id", apperr.ErrValidation)
	}

	profile, err := s.profileRepo.GetByID(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("%w: profile %s", apperr.ErrNotFound, id)
	}

	if profile.IsActive != active {
		profile.IsActive = active
		if err := s.profileRepo.Update(ctx, profile); err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}

		action := model.ActionDeactivateProfile
		if active {
			action = model.ActionActivateProfile
		}
		details, _ := json.Marshal(map[string]interface{}{"username": profile.Username, "is_active": active})
		audit := &model.AuditLog{
			ProfileID:  &actor.ProfileID,
			Action:     action,
			EntityID:   profile.ID.String(),
			EntityName: profile.Username,
			Details:    string(details),
		}
		if err := s.auditRepo.Create(ctx, audit); err != nil {
			return nil, fmt.Errorf("failed to write audit log: %w", err)
		}
	}

	return toProfileResponse(profile), nil
}
