package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
	"github.com/leasehold/leasehold/internal/store"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrRoleExists signals a role code collision with a different payload.
	ErrRoleExists = apperrors.New("CONFLICT", "Role code already exists for this landlord", http.StatusConflict)
)

// CreateRoleInput describes the payload accepted by Create.
type CreateRoleInput struct {
	LandlordID  string
	TenantID    *string
	Code        string
	Name        string
	Description string
}

// UpdateRoleInput describes mutable fields on a role.
type UpdateRoleInput struct {
	Name        *string
	Description *string
}

// RoleService provides role lifecycle and role-permission attachment.
type RoleService struct {
	db           *gorm.DB
	associations *store.AssociationStore
}

// NewRoleService constructs a RoleService using the provided database handle.
func NewRoleService(db *gorm.DB) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	associations, err := store.NewAssociationStore(db)
	if err != nil {
		return nil, err
	}
	return &RoleService{db: db, associations: associations}, nil
}

// Create registers a new role scoped to a landlord. Re-creating a role whose
// code, landlord, and remaining fields are identical returns the existing row
// instead of erroring, so retrying callers stay safe; a code collision with
// different fields is a conflict.
func (s *RoleService) Create(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	landlordID := strings.TrimSpace(input.LandlordID)
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if landlordID == "" {
		return nil, apperrors.NewValidation("landlord id is required")
	}
	if code == "" {
		return nil, apperrors.NewValidation("role code is required")
	}
	if name == "" {
		return nil, apperrors.NewValidation("role name is required")
	}

	var landlord models.Landlord
	err := s.db.WithContext(ctx).First(&landlord, "id = ?", landlordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLandlordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load landlord: %w", err)
	}

	if input.TenantID != nil {
		var tenant models.Tenant
		err := s.db.WithContext(ctx).First(&tenant, "id = ?", *input.TenantID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("role service: load tenant: %w", err)
		}
		if tenant.LandlordID != landlordID {
			return nil, apperrors.NewIntegrity("tenant belongs to a different landlord than the role")
		}
	}

	role := &models.Role{
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		LandlordID:  landlordID,
		TenantID:    input.TenantID,
	}

	if err := s.db.WithContext(ctx).Create(role).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("role service: create role: %w", err)
		}

		var existing models.Role
		loadErr := s.db.WithContext(ctx).
			First(&existing, "code = ? AND landlord_id = ?", code, landlordID).Error
		if loadErr != nil {
			return nil, fmt.Errorf("role service: load existing role: %w", loadErr)
		}
		if existing.Name == role.Name &&
			existing.Description == role.Description &&
			equalStringPtr(existing.TenantID, role.TenantID) {
			return &existing, nil
		}
		return nil, ErrRoleExists
	}

	return role, nil
}

// GetWithPermissions loads the role together with its full grant set: every
// role-permission-policy fact plus the referenced permission and policy
// fields, in one logical fetch. The assignment engine depends on this being
// atomic so propagation never sees a half-updated permission set.
func (s *RoleService) GetWithPermissions(ctx context.Context, roleID string) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var role models.Role
	err := s.db.WithContext(ctx).
		Preload("Grants").
		Preload("Grants.Permission").
		Preload("Grants.Policy").
		First(&role, "id = ?", strings.TrimSpace(roleID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load role: %w", err)
	}
	return &role, nil
}

// List returns roles, optionally scoped to one landlord.
func (s *RoleService) List(ctx context.Context, landlordID string) ([]models.Role, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("created_at ASC")
	if landlordID = strings.TrimSpace(landlordID); landlordID != "" {
		query = query.Where("landlord_id = ?", landlordID)
	}

	var roles []models.Role
	if err := query.Find(&roles).Error; err != nil {
		return nil, fmt.Errorf("role service: list roles: %w", err)
	}
	return roles, nil
}

// Update modifies role metadata. The code is immutable once created.
func (s *RoleService) Update(ctx context.Context, id string, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	var role models.Role
	err := s.db.WithContext(ctx).First(&role, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("role service: load role: %w", err)
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	if len(updates) == 0 {
		return &role, nil
	}

	if err := s.db.WithContext(ctx).Model(&role).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("role service: update role: %w", err)
	}
	return &role, nil
}

// Delete removes a role along with its grants and user assignments.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	var role models.Role
	err := s.db.WithContext(ctx).First(&role, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRoleNotFound
	}
	if err != nil {
		return fmt.Errorf("role service: load role: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&models.RolePermissionPolicy{}).Error; err != nil {
			return fmt.Errorf("delete role grants: %w", err)
		}
		if err := tx.Where("role_id = ?", id).Delete(&models.UserTenantRole{}).Error; err != nil {
			return fmt.Errorf("delete role assignments: %w", err)
		}
		if err := tx.Delete(&role).Error; err != nil {
			return fmt.Errorf("delete role: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("role service: cascade delete: %w", err)
	}
	return nil
}

// AttachPermission links a permission (optionally governed by a policy) to
// the role. Attaching an existing pair overwrites its policy fields.
func (s *RoleService) AttachPermission(ctx context.Context, roleID, permissionID string, policyID *string, inheritDefault bool) (*models.RolePermissionPolicy, error) {
	ctx = ensureContext(ctx)

	roleID = strings.TrimSpace(roleID)
	permissionID = strings.TrimSpace(permissionID)
	if roleID == "" || permissionID == "" {
		return nil, apperrors.NewValidation("role id and permission id are required")
	}
	if policyID != nil && strings.TrimSpace(*policyID) == "" {
		policyID = nil
	}

	return s.associations.AttachRolePermission(ctx, roleID, permissionID, policyID, inheritDefault)
}

// DetachPermission removes the role-permission grant. A missing grant is not
// an error; the boolean reports whether anything was removed.
func (s *RoleService) DetachPermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	ctx = ensureContext(ctx)
	return s.associations.DetachRolePermission(ctx, strings.TrimSpace(roleID), strings.TrimSpace(permissionID))
}

// ListGrants returns the role's grants with permission and policy fields resolved.
func (s *RoleService) ListGrants(ctx context.Context, roleID string) ([]models.RolePermissionPolicy, error) {
	ctx = ensureContext(ctx)

	if _, err := s.GetWithPermissions(ctx, roleID); err != nil {
		return nil, err
	}
	return s.associations.ListByRole(ctx, strings.TrimSpace(roleID))
}
