package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/leasehold/leasehold/internal/models"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

// AssociationStore persists the three pivot facts with set semantics:
// inserting an existing composite key never raises and never duplicates a
// grant. Cross-landlord integrity is verified before every write that links
// entities from the ownership hierarchy.
type AssociationStore struct {
	db *gorm.DB
}

// NewAssociationStore constructs an AssociationStore backed by the provided database.
func NewAssociationStore(db *gorm.DB) (*AssociationStore, error) {
	if db == nil {
		return nil, errors.New("association store: db is required")
	}
	return &AssociationStore{db: db}, nil
}

// WithTx returns a store bound to the given transaction handle so multi-step
// orchestrations can run as one atomic unit.
func (s *AssociationStore) WithTx(tx *gorm.DB) *AssociationStore {
	if tx == nil {
		return s
	}
	return &AssociationStore{db: tx}
}

// ExistsUserTenantRole reports whether the (user, tenant, role) fact exists.
func (s *AssociationStore) ExistsUserTenantRole(ctx context.Context, userID, tenantID, roleID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.UserTenantRole{}).
		Where("user_id = ? AND tenant_id = ? AND role_id = ?", userID, tenantID, roleID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("association store: check user tenant role: %w", err)
	}
	return count > 0, nil
}

// AddUserTenantRole inserts the (user, tenant, role) fact with
// insert-or-ignore semantics: a conflict on the composite key is swallowed.
func (s *AssociationStore) AddUserTenantRole(ctx context.Context, userID, tenantID, roleID string) error {
	fact := models.UserTenantRole{UserID: userID, TenantID: tenantID, RoleID: roleID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fact).Error
	if err != nil {
		return fmt.Errorf("association store: add user tenant role: %w", err)
	}
	return nil
}

// RemoveUserTenantRole deletes the fact, reporting whether a row existed.
func (s *AssociationStore) RemoveUserTenantRole(ctx context.Context, userID, tenantID, roleID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ? AND role_id = ?", userID, tenantID, roleID).
		Delete(&models.UserTenantRole{})
	if res.Error != nil {
		return false, fmt.Errorf("association store: remove user tenant role: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ExistsUserTenantPermission reports whether the (user, tenant, permission) fact exists.
func (s *AssociationStore) ExistsUserTenantPermission(ctx context.Context, userID, tenantID, permissionID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.UserTenantPermission{}).
		Where("user_id = ? AND tenant_id = ? AND permission_id = ?", userID, tenantID, permissionID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("association store: check user tenant permission: %w", err)
	}
	return count > 0, nil
}

// AddUserTenantPermission inserts the direct-permission fact, ignoring
// composite-key conflicts.
func (s *AssociationStore) AddUserTenantPermission(ctx context.Context, userID, tenantID, permissionID string) error {
	fact := models.UserTenantPermission{UserID: userID, TenantID: tenantID, PermissionID: permissionID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&fact).Error
	if err != nil {
		return fmt.Errorf("association store: add user tenant permission: %w", err)
	}
	return nil
}

// RemoveUserTenantPermission deletes the fact, reporting whether a row existed.
func (s *AssociationStore) RemoveUserTenantPermission(ctx context.Context, userID, tenantID, permissionID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND tenant_id = ? AND permission_id = ?", userID, tenantID, permissionID).
		Delete(&models.UserTenantPermission{})
	if res.Error != nil {
		return false, fmt.Errorf("association store: remove user tenant permission: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// AttachRolePermission upserts the (role, permission) grant. An existing key
// has its policy fields overwritten with the new values (last-writer-wins).
// The role, permission, and optional policy must all share one landlord;
// violations surface as integrity errors before anything is written.
func (s *AssociationStore) AttachRolePermission(ctx context.Context, roleID, permissionID string, policyID *string, inheritDefault bool) (*models.RolePermissionPolicy, error) {
	role, err := s.loadRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	permission, err := s.loadPermission(ctx, permissionID)
	if err != nil {
		return nil, err
	}

	if permission.LandlordID != role.LandlordID {
		return nil, apperrors.NewIntegrity("permission belongs to a different landlord than the role")
	}

	if policyID != nil {
		policy, err := s.loadPolicy(ctx, *policyID)
		if err != nil {
			return nil, err
		}
		if policy.LandlordID != role.LandlordID {
			return nil, apperrors.NewIntegrity("policy belongs to a different landlord than the role")
		}
	}

	fact := models.RolePermissionPolicy{
		RoleID:               roleID,
		PermissionID:         permissionID,
		PolicyID:             policyID,
		InheritDefaultPolicy: inheritDefault,
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "role_id"}, {Name: "permission_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"policy_id", "inherit_default_policy"}),
		}).
		Create(&fact).Error
	if err != nil {
		return nil, fmt.Errorf("association store: attach role permission: %w", err)
	}

	err = s.db.WithContext(ctx).
		Preload("Permission").
		Preload("Policy").
		First(&fact, "role_id = ? AND permission_id = ?", roleID, permissionID).Error
	if err != nil {
		return nil, fmt.Errorf("association store: reload role permission: %w", err)
	}

	return &fact, nil
}

// DetachRolePermission removes the grant, returning whether a row existed.
// False means "nothing to do", not an error.
func (s *AssociationStore) DetachRolePermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&models.RolePermissionPolicy{})
	if res.Error != nil {
		return false, fmt.Errorf("association store: detach role permission: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListByRole returns the role's grants with permission and policy fields resolved.
func (s *AssociationStore) ListByRole(ctx context.Context, roleID string) ([]models.RolePermissionPolicy, error) {
	var facts []models.RolePermissionPolicy
	err := s.db.WithContext(ctx).
		Preload("Permission").
		Preload("Policy").
		Where("role_id = ?", roleID).
		Order("created_at ASC").
		Find(&facts).Error
	if err != nil {
		return nil, fmt.Errorf("association store: list by role: %w", err)
	}
	return facts, nil
}

// ListRolesByUser returns the roles the user holds in the tenant.
func (s *AssociationStore) ListRolesByUser(ctx context.Context, userID, tenantID string) ([]models.Role, error) {
	var roles []models.Role
	err := s.db.WithContext(ctx).
		Joins("JOIN user_tenant_roles utr ON utr.role_id = roles.id").
		Where("utr.user_id = ? AND utr.tenant_id = ?", userID, tenantID).
		Order("utr.created_at ASC").
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("association store: list roles by user: %w", err)
	}
	return roles, nil
}

// ListPermissionsByUser returns the permissions the user holds directly in the tenant.
func (s *AssociationStore) ListPermissionsByUser(ctx context.Context, userID, tenantID string) ([]models.Permission, error) {
	var permissions []models.Permission
	err := s.db.WithContext(ctx).
		Joins("JOIN user_tenant_permissions utp ON utp.permission_id = permissions.id").
		Where("utp.user_id = ? AND utp.tenant_id = ?", userID, tenantID).
		Order("utp.created_at ASC").
		Find(&permissions).Error
	if err != nil {
		return nil, fmt.Errorf("association store: list permissions by user: %w", err)
	}
	return permissions, nil
}

func (s *AssociationStore) loadRole(ctx context.Context, roleID string) (*models.Role, error) {
	var role models.Role
	err := s.db.WithContext(ctx).First(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("role not found")
	}
	if err != nil {
		return nil, fmt.Errorf("association store: load role: %w", err)
	}
	return &role, nil
}

func (s *AssociationStore) loadPermission(ctx context.Context, permissionID string) (*models.Permission, error) {
	var permission models.Permission
	err := s.db.WithContext(ctx).First(&permission, "id = ?", permissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("permission not found")
	}
	if err != nil {
		return nil, fmt.Errorf("association store: load permission: %w", err)
	}
	return &permission, nil
}

func (s *AssociationStore) loadPolicy(ctx context.Context, policyID string) (*models.Policy, error) {
	var policy models.Policy
	err := s.db.WithContext(ctx).First(&policy, "id = ?", policyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("policy not found")
	}
	if err != nil {
		return nil, fmt.Errorf("association store: load policy: %w", err)
	}
	return &policy, nil
}
