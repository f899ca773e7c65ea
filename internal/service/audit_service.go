package service

import (
	"context"
	"fmt"

	"backend/internal/authz"
	"backend/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	ProfileID  string `json:"profile_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, actor *authz.Actor, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

func (s *auditService) GetAuditLogs(ctx context.Context, actor *authz.Actor, page, limit int) ([]AuditLogResponse, int64, error) {
	if err := authz.Authorize(actor, authz.RoleAdmin); err != nil {
		return nil, 0, err
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	logs, total, err := s.auditRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		profileID := ""
		if l.Profile != nil {
			username = l.Profile.Username
		}
		if l.ProfileID != nil {
			profileID = l.ProfileID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			ProfileID:  profileID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
