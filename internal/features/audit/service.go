package audit

import (
	"context"
	"time"

	common_models "go-kpi/internal/common/models"
	"go-kpi/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserFinder interface {
	FindByIDs(ctx context.Context, ids []string) ([]common_models.User, error)
}

type AuditService interface {
	LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error
	ListLogs(ctx context.Context, filter AuditFilter, page, limit int64) ([]common_models.AuditLog, error)
}

type AuditServiceImpl struct {
	Repo     AuditRepository
	UserRepo UserFinder
}

func NewAuditService(repo AuditRepository, userRepo UserFinder) AuditService {
	return &AuditServiceImpl{
		Repo:     repo,
		UserRepo: userRepo,
	}
}

func (s *AuditServiceImpl) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	actorID := "system"
	if claims, ok := utils.ClaimsFromContext(ctx); ok {
		actorID = claims.UserID
	}

	log := common_models.AuditLog{
		ID:        primitive.NewObjectID(),
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		ActorID:   actorID,
		Changes:   changes,
		Timestamp: time.Now(),
	}

	return s.Repo.Create(ctx, log)
}

func (s *AuditServiceImpl) ListLogs(ctx context.Context, filter AuditFilter, page, limit int64) ([]common_models.AuditLog, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	offset := (page - 1) * limit
	logs, err := s.Repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}

	actorIDs := make([]string, 0)
	seen := make(map[string]bool)
	for _, log := range logs {
		if log.ActorID != "system" && log.ActorID != "" && !seen[log.ActorID] {
			seen[log.ActorID] = true
			actorIDs = append(actorIDs, log.ActorID)
		}
	}

	names := make(map[string]string)
	if len(actorIDs) > 0 {
		users, err := s.UserRepo.FindByIDs(ctx, actorIDs)
		if err == nil {
			for _, user := range users {
				names[user.ID.Hex()] = user.Name
			}
		}
	}

	for i, log := range logs {
		switch {
		case log.ActorID == "system" || log.ActorID == "":
			logs[i].ActorName = "System"
		case names[log.ActorID] != "":
			logs[i].ActorName = names[log.ActorID]
		default:
			logs[i].ActorName = "Unknown User"
		}
	}

	return logs, nil
}
