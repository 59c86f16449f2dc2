package auth

import (
	"context"
	"strings"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/features/audit"
	"go-kpi/internal/features/user"
	"go-kpi/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Me(ctx context.Context, userID string) (*models.User, error)
}

// Session is a signed token plus the user it belongs to
type Session struct {
	Token     string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type AuthServiceImpl struct {
	UserRepo     user.UserRepository
	AuditService audit.AuditService
	SessionTTL   time.Duration
}

func NewAuthService(userRepo user.UserRepository, auditService audit.AuditService, cfg *config.Config) AuthService {
	utils.SetSecret(cfg.JWTSecret)
	return &AuthServiceImpl{
		UserRepo:     userRepo,
		AuditService: auditService,
		SessionTTL:   cfg.SessionTTL,
	}
}

func (s *AuthServiceImpl) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("email", "a valid email is required")
	}
	if len(password) < 8 {
		return nil, apperr.Validation("password", "password must be at least 8 characters")
	}
	if strings.TrimSpace(name) == "" {
		name = strings.Split(email, "@")[0]
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	// The first account bootstraps the installation
	role := models.RoleEditor
	if count, err := s.UserRepo.Count(ctx); err == nil && count == 0 {
		role = models.RoleAdmin
	}

	newUser := &models.User{
		Email:    email,
		Name:     name,
		Password: string(hashed),
		Role:     role,
	}
	if err := s.UserRepo.Create(ctx, newUser); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionCreate, "users", newUser.ID.Hex(), map[string]models.Change{
		"email": {New: newUser.Email},
		"role":  {New: role},
	})

	return newUser, nil
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*Session, error) {
	usr, err := s.UserRepo.FindByEmail(ctx, email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Unauthorized("invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(usr.Password), []byte(password)); err != nil {
		return nil, apperr.Unauthorized("invalid credentials")
	}

	token, err := utils.GenerateToken(usr.ID.Hex(), string(usr.Role), s.SessionTTL)
	if err != nil {
		return nil, err
	}

	_ = s.UserRepo.TouchLastLogin(ctx, usr.ID)
	ctx = utils.WithClaims(ctx, &utils.UserClaims{UserID: usr.ID.Hex(), Role: string(usr.Role)})
	_ = s.AuditService.LogChange(ctx, models.AuditActionLogin, "users", usr.ID.Hex(), nil)

	return &Session{Token: token, ExpiresAt: time.Now().Add(s.SessionTTL), User: usr}, nil
}

func (s *AuthServiceImpl) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.UserRepo.FindByID(ctx, userID)
}
