package policy

import (
	"github.com/diewo77/go-crm/gate"
	"github.com/diewo77/go-crm/internal/models"
)

// Resource types guarded by the gate.
const (
	ResourceUser    = "user"
	ResourceCompany = "company"
	ResourceContact = "contact"
	ResourceDeal    = "deal"
)

func perm(resource string, action gate.Action) gate.Permission {
	return gate.NewPermission(resource, action)
}

var rolePermissions = map[models.Role][]gate.Permission{
	models.RoleAdmin: {gate.PermissionSuperAdmin},
	models.RoleManager: {
		perm(ResourceUser, gate.ActionList),
		perm(ResourceUser, gate.ActionView),
		perm(ResourceCompany, gate.ActionAll),
		perm(ResourceContact, gate.ActionAll),
		perm(ResourceDeal, gate.ActionAll),
	},
	models.RoleSales: {
		perm(ResourceCompany, gate.ActionList),
		perm(ResourceCompany, gate.ActionView),
		perm(ResourceCompany, gate.ActionCreate),
		perm(ResourceCompany, gate.ActionUpdate),
		perm(ResourceContact, gate.ActionAll),
		perm(ResourceDeal, gate.ActionAll),
	},
	models.RoleUser: {
		perm(ResourceCompany, gate.ActionList),
		perm(ResourceCompany, gate.ActionView),
		perm(ResourceContact, gate.ActionList),
		perm(ResourceContact, gate.ActionView),
		perm(ResourceDeal, gate.ActionList),
		perm(ResourceDeal, gate.ActionView),
	},
}

var roleProfiles = func() map[models.Role]*gate.StaticProfile {
	m := make(map[models.Role]*gate.StaticProfile, len(rolePermissions))
	for role, perms := range rolePermissions {
		m[role] = gate.NewStaticProfile(string(role), perms...)
	}
	return m
}()

// RoleProfile returns the permission profile of a role. Unknown roles get an
// empty profile.
func RoleProfile(role models.Role) *gate.StaticProfile {
	if p, ok := roleProfiles[role]; ok {
		return p
	}
	return gate.NewStaticProfile(string(role))
}
