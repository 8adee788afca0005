package authz

import (
	"fmt"

	"github.com/YouHyuksoo/HANES-sub002/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// BuiltinRoleSeeds 出货模块预置角色：查看、操作、管理员（仅管理员可强制变更状态）
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.RoleShippingViewer,
			Policies: []Policy{
				{Object: "/shipping/*", Action: "GET"},
			},
		},
		{
			Role:     constants.RoleShippingOperator,
			Inherits: []string{constants.RoleShippingViewer},
			Policies: []Policy{
				{Object: "/shipping/boxes", Action: "POST"},
				{Object: "/shipping/boxes/:id", Action: "DELETE"},
				{Object: "/shipping/boxes/:id/serials", Action: "DELETE"},
				{Object: "/shipping/boxes/:id/:action", Action: "POST"},
				{Object: "/shipping/pallets", Action: "POST"},
				{Object: "/shipping/pallets/:id", Action: "DELETE"},
				{Object: "/shipping/pallets/:id/boxes", Action: "DELETE"},
				{Object: "/shipping/pallets/:id/:action", Action: "POST"},
				{Object: "/shipping/shipments", Action: "POST"},
				{Object: "/shipping/shipments/:id", Action: "PUT"},
				{Object: "/shipping/shipments/:id", Action: "DELETE"},
				{Object: "/shipping/shipments/:id/pallets", Action: "DELETE"},
				{Object: "/shipping/shipments/:id/:action", Action: "POST"},
				{Object: "/shipping/shipments/:id/erp-sync", Action: "PUT"},
			},
		},
		{
			Role:     constants.RoleShippingAdmin,
			Inherits: []string{constants.RoleShippingOperator},
			Policies: []Policy{
				{Object: "/shipping/shipments/:id/status", Action: "PUT"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if err := s.ready(); err != nil {
		return err
	}

	for _, seed := range BuiltinRoleSeeds() {
		role, err := s.EnsureRole(seed.Role)
		if err != nil {
			return err
		}
		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			if _, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole); err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
		}
		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			if _, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action); err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
		}
	}
	return nil
}
