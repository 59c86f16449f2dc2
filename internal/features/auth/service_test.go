package auth

import (
	"context"
	"testing"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/audit"
	"go-kpi/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) Search(ctx context.Context, term string, limit int64) ([]models.User, error) {
	args := m.Called(ctx, term, limit)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUserRepository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	return m.Called(ctx, id, role).Error(0)
}

func (m *MockUserRepository) TouchLastLogin(ctx context.Context, id primitive.ObjectID) error {
	return nil
}

func (m *MockUserRepository) EnsureIndexes(ctx context.Context) error {
	return nil
}

type nopAudit struct{}

func (nopAudit) LogChange(ctx context.Context, action models.AuditAction, module string, recordID string, changes map[string]models.Change) error {
	return nil
}

func (nopAudit) ListLogs(ctx context.Context, filter audit.AuditFilter, page, limit int64) ([]models.AuditLog, error) {
	return nil, nil
}

func newService(repo *MockUserRepository) *AuthServiceImpl {
	utils.SetSecret("test")
	return &AuthServiceImpl{UserRepo: repo, AuditService: nopAudit{}, SessionTTL: time.Hour}
}

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	repo := new(MockUserRepository)
	repo.On("Count", mock.Anything).Return(int64(0), nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*models.User")).Return(nil)

	usr, err := newService(repo).Register(context.Background(), "ada@example.com", "longenough", "Ada")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, usr.Role)
	assert.NotEqual(t, "longenough", usr.Password)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc := newService(new(MockUserRepository))

	_, err := svc.Register(context.Background(), "not-an-email", "longenough", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Register(context.Background(), "a@b.c", "short", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLogin(t *testing.T) {
	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	stored := &models.User{ID: primitive.NewObjectID(), Email: "ada@example.com", Password: string(hashed), Role: models.RoleEditor}

	repo := new(MockUserRepository)
	repo.On("FindByEmail", mock.Anything, "ada@example.com").Return(stored, nil)
	repo.On("FindByEmail", mock.Anything, "ghost@example.com").Return(nil, apperr.NotFound("user"))
	svc := newService(repo)

	session, err := svc.Login(context.Background(), "ada@example.com", "correct-horse")
	require.NoError(t, err)
	claims, err := utils.ValidateToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, stored.ID.Hex(), claims.UserID)
	assert.Equal(t, "EDITOR", claims.Role)

	_, err = svc.Login(context.Background(), "ada@example.com", "wrong")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))

	_, err = svc.Login(context.Background(), "ghost@example.com", "whatever")
	assert.True(t, apperr.Is(err, apperr.KindUnauthorized))
}
