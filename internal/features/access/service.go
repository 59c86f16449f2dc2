package access

import (
	"context"
	"strings"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/audit"
	"go-kpi/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Need is the capability an operation requires
type Need int

const (
	NeedView Need = iota
	NeedEdit
	NeedManage
	NeedShare
)

// UserFinder is the subset of the user repository access decisions use
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type AccessService interface {
	Flags(ctx context.Context, res Resource, requester Requester) (AccessFlags, error)
	Authorize(ctx context.Context, res Resource, requester Requester, need Need) (AccessFlags, error)
	List(ctx context.Context, res Resource) (*AccessList, error)
	Grant(ctx context.Context, res Resource, req GrantRequest) (*AccessListItem, error)
	Update(ctx context.Context, res Resource, userID string, permission string) error
	Revoke(ctx context.Context, res Resource, userID string) error
	ResourceIDsFor(ctx context.Context, rt ResourceType, userID string) ([]primitive.ObjectID, error)
	RemoveResource(ctx context.Context, res Resource) error
}

type AccessServiceImpl struct {
	Repo         AccessRepository
	Users        UserFinder
	AuditService audit.AuditService
}

func NewAccessService(repo AccessRepository, users UserFinder, auditService audit.AuditService) AccessService {
	return &AccessServiceImpl{
		Repo:         repo,
		Users:        users,
		AuditService: auditService,
	}
}

// RequesterFromContext builds a Requester from the session claims on ctx
func RequesterFromContext(ctx context.Context) Requester {
	claims, ok := utils.ClaimsFromContext(ctx)
	if !ok {
		return Requester{}
	}
	return Requester{UserID: claims.UserID, Role: models.Role(claims.Role)}
}

func (s *AccessServiceImpl) Flags(ctx context.Context, res Resource, requester Requester) (AccessFlags, error) {
	if requester.UserID == res.OwnerID.Hex() || models.HasMinimumRole(requester.Role, models.RoleAdmin) {
		return DeriveAccess(requester, res.OwnerID.Hex(), nil), nil
	}

	entries, err := s.Repo.FindByResource(ctx, res.Type, res.ID)
	if err != nil {
		return AccessFlags{}, err
	}
	return DeriveAccess(requester, res.OwnerID.Hex(), entries), nil
}

func (s *AccessServiceImpl) Authorize(ctx context.Context, res Resource, requester Requester, need Need) (AccessFlags, error) {
	flags, err := s.Flags(ctx, res, requester)
	if err != nil {
		return flags, err
	}

	allowed := false
	switch need {
	case NeedView:
		allowed = flags.CanView
	case NeedEdit:
		allowed = flags.CanEdit
	case NeedManage:
		allowed = flags.CanManage
	case NeedShare:
		allowed = flags.CanShare
	}

	if !allowed {
		return flags, apperr.Forbidden("you do not have permission to perform this action on this " + string(res.Type))
	}
	return flags, nil
}

func (s *AccessServiceImpl) List(ctx context.Context, res Resource) (*AccessList, error) {
	entries, err := s.Repo.FindByResource(ctx, res.Type, res.ID)
	if err != nil {
		return nil, err
	}

	ids := []string{res.OwnerID.Hex()}
	for _, e := range entries {
		ids = append(ids, e.UserID.Hex())
	}
	users, err := s.Users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	list := &AccessList{AccessList: []AccessListItem{}}
	if owner, ok := byID[res.OwnerID]; ok {
		list.Owner = owner.Summary()
	} else {
		list.Owner = models.UserSummary{ID: res.OwnerID}
	}

	for _, e := range entries {
		// Stale rows for the owner are never reported
		if e.UserID == res.OwnerID {
			continue
		}
		summary := models.UserSummary{ID: e.UserID}
		if u, ok := byID[e.UserID]; ok {
			summary = u.Summary()
		}
		list.AccessList = append(list.AccessList, AccessListItem{User: summary, Permission: e.Permission, GrantedAt: e.GrantedAt})
	}
	return list, nil
}

func (s *AccessServiceImpl) Grant(ctx context.Context, res Resource, req GrantRequest) (*AccessListItem, error) {
	permission, ok := ParsePermission(req.Permission)
	if !ok {
		return nil, apperr.Validation("permission", "permission must be VIEW or EDIT")
	}

	var target *models.User
	var err error
	switch {
	case req.UserID != "":
		target, err = s.Users.FindByID(ctx, req.UserID)
	case strings.TrimSpace(req.Email) != "":
		target, err = s.Users.FindByEmail(ctx, req.Email)
	default:
		return nil, apperr.Validation("userId", "userId or email is required")
	}
	if err != nil {
		return nil, err
	}

	if target.ID == res.OwnerID {
		return nil, apperr.Conflict("the owner already has full access to this %s", res.Type)
	}

	entry := &AccessEntry{
		ResourceType: res.Type,
		ResourceID:   res.ID,
		UserID:       target.ID,
		Permission:   permission,
		GrantedBy:    RequesterFromContext(ctx).UserID,
	}
	if err := s.Repo.Upsert(ctx, entry); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionAccess, string(res.Type)+"s", res.ID.Hex(), map[string]models.Change{
		"grant": {New: map[string]string{"user_id": target.ID.Hex(), "permission": string(permission)}},
	})

	return &AccessListItem{User: target.Summary(), Permission: entry.Permission, GrantedAt: entry.GrantedAt}, nil
}

func (s *AccessServiceImpl) Update(ctx context.Context, res Resource, userID string, permission string) error {
	p, ok := ParsePermission(permission)
	if !ok {
		return apperr.Validation("permission", "permission must be VIEW or EDIT")
	}
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return apperr.NotFound("access entry")
	}

	existing, err := s.Repo.Find(ctx, res.Type, res.ID, uid)
	if err != nil {
		return err
	}

	if err := s.Repo.UpdatePermission(ctx, res.Type, res.ID, uid, p); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionAccess, string(res.Type)+"s", res.ID.Hex(), map[string]models.Change{
		"permission": {Old: existing.Permission, New: p},
	})
	return nil
}

// Revoke succeeds when the entry is already absent
func (s *AccessServiceImpl) Revoke(ctx context.Context, res Resource, userID string) error {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return apperr.Validation("userId", "invalid user id")
	}

	removed, err := s.Repo.Delete(ctx, res.Type, res.ID, uid)
	if err != nil {
		return err
	}

	if removed {
		_ = s.AuditService.LogChange(ctx, models.AuditActionAccess, string(res.Type)+"s", res.ID.Hex(), map[string]models.Change{
			"revoke": {Old: userID, New: nil},
		})
	}
	return nil
}

func (s *AccessServiceImpl) ResourceIDsFor(ctx context.Context, rt ResourceType, userID string) ([]primitive.ObjectID, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []primitive.ObjectID{}, nil
	}
	return s.Repo.FindResourceIDsForUser(ctx, rt, uid)
}

func (s *AccessServiceImpl) RemoveResource(ctx context.Context, res Resource) error {
	return s.Repo.DeleteByResource(ctx, res.Type, res.ID)
}
