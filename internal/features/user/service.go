package user

import (
	"context"
	"strings"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/audit"
)

type UserService interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	SearchUsers(ctx context.Context, term string) ([]models.UserSummary, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
}

type UserServiceImpl struct {
	UserRepo     UserRepository
	AuditService audit.AuditService
}

func NewUserService(userRepo UserRepository, auditService audit.AuditService) UserService {
	return &UserServiceImpl{
		UserRepo:     userRepo,
		AuditService: auditService,
	}
}

func (s *UserServiceImpl) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.UserRepo.FindByID(ctx, id)
}

func (s *UserServiceImpl) SearchUsers(ctx context.Context, term string) ([]models.UserSummary, error) {
	users, err := s.UserRepo.Search(ctx, term, 20)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, users[i].Summary())
	}
	return summaries, nil
}

func (s *UserServiceImpl) UpdateRole(ctx context.Context, id string, role models.Role) error {
	role = models.Role(strings.ToUpper(string(role)))
	if !role.Valid() {
		return apperr.Validation("role", "role must be one of VIEWER, EDITOR, ADMIN")
	}

	existing, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.UserRepo.UpdateRole(ctx, id, role); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionUpdate, "users", id, map[string]models.Change{
		"role": {Old: existing.Role, New: role},
	})
	return nil
}
