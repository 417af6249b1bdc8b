package authz

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
	"github.com/leasehold/leasehold/pkg/metrics"
)

// Query answers access-control questions at request time. Both lookups are
// pure reads against the pivot tables: role-derived permissions are visible
// only because the assignment engine materialises them into direct grants,
// so no role graph is walked here. Cheap reads, eager writes.
type Query struct {
	db *gorm.DB
}

// NewQuery constructs an authorization query backed by the provided database.
func NewQuery(db *gorm.DB) (*Query, error) {
	if db == nil {
		return nil, errors.New("authorization query: db is required")
	}
	return &Query{db: db}, nil
}

// UserHasPermission reports whether the user directly holds a permission
// matching (action, resource) in the tenant.
func (q *Query) UserHasPermission(ctx context.Context, userID, tenantID, action, resource string) (bool, error) {
	ctx = ensureContext(ctx)

	userID = trimID(userID)
	tenantID = trimID(tenantID)
	if userID == "" || tenantID == "" || trimID(action) == "" || trimID(resource) == "" {
		return false, nil
	}

	var count int64
	err := q.db.WithContext(ctx).
		Model(&models.UserTenantPermission{}).
		Joins("JOIN permissions p ON p.id = user_tenant_permissions.permission_id").
		Where("user_tenant_permissions.user_id = ? AND user_tenant_permissions.tenant_id = ?", userID, tenantID).
		Where("p.action = ? AND p.resource = ?", action, resource).
		Count(&count).Error
	if err != nil {
		metrics.PermissionChecks.WithLabelValues("error").Inc()
		return false, fmt.Errorf("authorization query: check permission: %w", err)
	}

	if count > 0 {
		metrics.PermissionChecks.WithLabelValues("allowed").Inc()
		return true, nil
	}
	metrics.PermissionChecks.WithLabelValues("denied").Inc()
	return false, nil
}

// UserHasRole reports whether the user holds the role in the tenant. The role
// may be referenced by id or by its landlord-scoped code.
func (q *Query) UserHasRole(ctx context.Context, userID, tenantID, roleIDOrCode string) (bool, error) {
	ctx = ensureContext(ctx)

	userID = trimID(userID)
	tenantID = trimID(tenantID)
	roleIDOrCode = trimID(roleIDOrCode)
	if userID == "" || tenantID == "" || roleIDOrCode == "" {
		return false, nil
	}

	var count int64
	err := q.db.WithContext(ctx).
		Model(&models.UserTenantRole{}).
		Joins("JOIN roles r ON r.id = user_tenant_roles.role_id").
		Where("user_tenant_roles.user_id = ? AND user_tenant_roles.tenant_id = ?", userID, tenantID).
		Where("r.id = ? OR r.code = ?", roleIDOrCode, roleIDOrCode).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("authorization query: check role: %w", err)
	}
	return count > 0, nil
}

// ListUserPermissionDisplays returns the "action:resource" strings the user
// holds directly in the tenant, for profile and debugging endpoints.
func (q *Query) ListUserPermissionDisplays(ctx context.Context, userID, tenantID string) ([]string, error) {
	ctx = ensureContext(ctx)

	var permissions []models.Permission
	err := q.db.WithContext(ctx).
		Joins("JOIN user_tenant_permissions utp ON utp.permission_id = permissions.id").
		Where("utp.user_id = ? AND utp.tenant_id = ?", trimID(userID), trimID(tenantID)).
		Order("permissions.action ASC, permissions.resource ASC").
		Find(&permissions).Error
	if err != nil {
		return nil, fmt.Errorf("authorization query: list permissions: %w", err)
	}

	displays := make([]string, 0, len(permissions))
	for i := range permissions {
		displays = append(displays, permissions[i].Display())
	}
	return displays, nil
}
