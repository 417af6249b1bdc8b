package models

import "time"

// The three pivot facts below carry composite primary keys instead of
// surrogate ids: the key is the fact. All of them follow idempotent set
// semantics; inserting an existing key is a no-op at the store boundary.

// UserTenantRole records "user has role in tenant".
type UserTenantRole struct {
	UserID    string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	TenantID  string    `gorm:"primaryKey;type:uuid" json:"tenant_id"`
	RoleID    string    `gorm:"primaryKey;type:uuid" json:"role_id"`
	CreatedAt time.Time `json:"created_at"`

	Role *Role `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// TableName keeps the pivot naming consistent with the other facts.
func (UserTenantRole) TableName() string { return "user_tenant_roles" }

// UserTenantPermission records "user holds this permission directly in this
// tenant", whether granted manually or propagated from a role.
type UserTenantPermission struct {
	UserID       string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	TenantID     string    `gorm:"primaryKey;type:uuid" json:"tenant_id"`
	PermissionID string    `gorm:"primaryKey;type:uuid" json:"permission_id"`
	CreatedAt    time.Time `json:"created_at"`

	Permission *Permission `gorm:"foreignKey:PermissionID" json:"permission,omitempty"`
}

func (UserTenantPermission) TableName() string { return "user_tenant_permissions" }

// RolePermissionPolicy records "role carries permission", optionally governed
// by a policy. With no explicit policy and inherit_default_policy set, the
// permission's default policy governs the grant; with neither, the grant is
// policy-less (unconditional allow).
type RolePermissionPolicy struct {
	RoleID               string    `gorm:"primaryKey;type:uuid" json:"role_id"`
	PermissionID         string    `gorm:"primaryKey;type:uuid" json:"permission_id"`
	PolicyID             *string   `gorm:"type:uuid" json:"policy_id,omitempty"`
	InheritDefaultPolicy bool      `gorm:"default:false" json:"inherit_default_policy"`
	CreatedAt            time.Time `json:"created_at"`

	Permission *Permission `gorm:"foreignKey:PermissionID" json:"permission,omitempty"`
	Policy     *Policy     `gorm:"foreignKey:PolicyID" json:"policy,omitempty"`
}

func (RolePermissionPolicy) TableName() string { return "role_permission_policies" }
