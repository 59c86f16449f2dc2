package access

import (
	"context"
	"strings"
	"time"

	"go-kpi/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Permission string

const (
	PermissionView Permission = "VIEW"
	PermissionEdit Permission = "EDIT"
)

func ParsePermission(s string) (Permission, bool) {
	p := Permission(strings.ToUpper(strings.TrimSpace(s)))
	return p, p == PermissionView || p == PermissionEdit
}

// Allows reports whether p satisfies required; EDIT implies VIEW
func (p Permission) Allows(required Permission) bool {
	switch required {
	case PermissionView:
		return p == PermissionView || p == PermissionEdit
	case PermissionEdit:
		return p == PermissionEdit
	default:
		return false
	}
}

type ResourceType string

const (
	ResourceDashboard ResourceType = "dashboard"
	ResourceKpi       ResourceType = "kpi"
)

// AccessEntry is a non-owner grant on a dashboard or KPI
type AccessEntry struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ResourceType ResourceType       `json:"resource_type" bson:"resource_type"`
	ResourceID   primitive.ObjectID `json:"resource_id" bson:"resource_id"`
	UserID       primitive.ObjectID `json:"user_id" bson:"user_id"`
	Permission   Permission         `json:"permission" bson:"permission"`
	GrantedBy    string             `json:"granted_by,omitempty" bson:"granted_by,omitempty"`
	GrantedAt    time.Time          `json:"granted_at" bson:"granted_at"`
}

// AccessFlags are derived per requesting user and never persisted
type AccessFlags struct {
	IsOwner   bool `json:"isOwner"`
	CanView   bool `json:"canView"`
	CanEdit   bool `json:"canEdit"`
	CanManage bool `json:"canManage"`
	CanShare  bool `json:"canShare"`
}

// Requester identifies who is asking
type Requester struct {
	UserID string
	Role   models.Role
}

// Resource is the ownership information access decisions need
type Resource struct {
	Type    ResourceType
	ID      primitive.ObjectID
	OwnerID primitive.ObjectID
}

type AccessListItem struct {
	User       models.UserSummary `json:"user"`
	Permission Permission         `json:"permission"`
	GrantedAt  time.Time          `json:"grantedAt"`
}

// AccessList is the response of the access endpoints; the owner is listed separately
type AccessList struct {
	Owner      models.UserSummary `json:"owner"`
	AccessList []AccessListItem   `json:"accessList"`
}

// GrantRequest targets a user by id or email
type GrantRequest struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	Permission string `json:"permission"`
}

type UpdateRequest struct {
	Permission string `json:"permission"`
}

// LinkCleaner drops the share links of a deleted resource
type LinkCleaner interface {
	DeleteByResource(ctx context.Context, rt ResourceType, id primitive.ObjectID) error
}
