package access

import (
	"go-kpi/internal/common/models"
)

// DeriveAccess computes the requester's flags on a resource from its owner and grant list.
// canShare follows canManage: only owners and admins mint share links.
func DeriveAccess(requester Requester, ownerID string, entries []AccessEntry) AccessFlags {
	flags := AccessFlags{}
	if requester.UserID == "" {
		return flags
	}

	flags.IsOwner = requester.UserID == ownerID
	flags.CanManage = flags.IsOwner || models.HasMinimumRole(requester.Role, models.RoleAdmin)

	var granted Permission
	for _, e := range entries {
		if e.UserID.Hex() == requester.UserID {
			granted = e.Permission
			break
		}
	}

	flags.CanEdit = flags.CanManage || granted.Allows(PermissionEdit)
	flags.CanView = flags.CanEdit || granted.Allows(PermissionView)
	flags.CanShare = flags.CanManage
	return flags
}
