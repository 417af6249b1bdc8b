package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

var (
	// ErrPermissionNotFound indicates the requested permission does not exist.
	ErrPermissionNotFound = apperrors.New("PERMISSION_NOT_FOUND", "Permission not found", http.StatusNotFound)
	// ErrPermissionExists signals an (action, resource) collision within a landlord.
	ErrPermissionExists = apperrors.New("CONFLICT", "Permission already exists for this landlord", http.StatusConflict)
)

// CreatePermissionInput describes the payload accepted by Create.
type CreatePermissionInput struct {
	LandlordID      string
	Action          string
	Resource        string
	DefaultPolicyID *string
}

// PermissionService manages (action, resource) capability pairs.
type PermissionService struct {
	db *gorm.DB
}

// NewPermissionService constructs a PermissionService using the provided database handle.
func NewPermissionService(db *gorm.DB) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	return &PermissionService{db: db}, nil
}

// Create registers a new permission. Creating an identical permission again
// returns the existing row; a key collision with a different default policy
// is a conflict.
func (s *PermissionService) Create(ctx context.Context, input CreatePermissionInput) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	landlordID := strings.TrimSpace(input.LandlordID)
	action := strings.TrimSpace(input.Action)
	resource := strings.TrimSpace(input.Resource)
	if landlordID == "" {
		return nil, apperrors.NewValidation("landlord id is required")
	}
	if action == "" || resource == "" {
		return nil, apperrors.NewValidation("action and resource are required")
	}

	var landlord models.Landlord
	err := s.db.WithContext(ctx).First(&landlord, "id = ?", landlordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLandlordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("permission service: load landlord: %w", err)
	}

	if input.DefaultPolicyID != nil {
		if err := s.checkPolicyLandlord(ctx, *input.DefaultPolicyID, landlordID); err != nil {
			return nil, err
		}
	}

	permission := &models.Permission{
		Action:          action,
		Resource:        resource,
		LandlordID:      landlordID,
		DefaultPolicyID: input.DefaultPolicyID,
	}

	if err := s.db.WithContext(ctx).Create(permission).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("permission service: create permission: %w", err)
		}

		var existing models.Permission
		loadErr := s.db.WithContext(ctx).
			First(&existing, "action = ? AND resource = ? AND landlord_id = ?", action, resource, landlordID).Error
		if loadErr != nil {
			return nil, fmt.Errorf("permission service: load existing permission: %w", loadErr)
		}
		if equalStringPtr(existing.DefaultPolicyID, input.DefaultPolicyID) {
			return &existing, nil
		}
		return nil, ErrPermissionExists
	}

	return permission, nil
}

// GetByID loads a permission with its default policy resolved.
func (s *PermissionService) GetByID(ctx context.Context, id string) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	var permission models.Permission
	err := s.db.WithContext(ctx).
		Preload("DefaultPolicy").
		First(&permission, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPermissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("permission service: load permission: %w", err)
	}
	return &permission, nil
}

// List returns permissions, optionally scoped to one landlord.
func (s *PermissionService) List(ctx context.Context, landlordID string) ([]models.Permission, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("action ASC, resource ASC")
	if landlordID = strings.TrimSpace(landlordID); landlordID != "" {
		query = query.Where("landlord_id = ?", landlordID)
	}

	var permissions []models.Permission
	if err := query.Find(&permissions).Error; err != nil {
		return nil, fmt.Errorf("permission service: list permissions: %w", err)
	}
	return permissions, nil
}

// SetDefaultPolicy points the permission at a default policy, or clears it
// when policyID is nil. The policy must share the permission's landlord.
func (s *PermissionService) SetDefaultPolicy(ctx context.Context, permissionID string, policyID *string) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	permission, err := s.GetByID(ctx, permissionID)
	if err != nil {
		return nil, err
	}

	if policyID != nil {
		if err := s.checkPolicyLandlord(ctx, *policyID, permission.LandlordID); err != nil {
			return nil, err
		}
	}

	// A map update so a nil policyID writes NULL instead of being skipped.
	if err := s.db.WithContext(ctx).Model(permission).
		Updates(map[string]any{"default_policy_id": policyID}).Error; err != nil {
		return nil, fmt.Errorf("permission service: set default policy: %w", err)
	}

	return s.GetByID(ctx, permissionID)
}

// Delete removes a permission together with every fact referencing it.
func (s *PermissionService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	permission, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permission_id = ?", id).Delete(&models.RolePermissionPolicy{}).Error; err != nil {
			return fmt.Errorf("delete role grants: %w", err)
		}
		if err := tx.Where("permission_id = ?", id).Delete(&models.UserTenantPermission{}).Error; err != nil {
			return fmt.Errorf("delete user grants: %w", err)
		}
		if err := tx.Delete(permission).Error; err != nil {
			return fmt.Errorf("delete permission: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("permission service: cascade delete: %w", err)
	}
	return nil
}

func (s *PermissionService) checkPolicyLandlord(ctx context.Context, policyID, landlordID string) error {
	var policy models.Policy
	err := s.db.WithContext(ctx).First(&policy, "id = ?", policyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPolicyNotFound
	}
	if err != nil {
		return fmt.Errorf("permission service: load policy: %w", err)
	}
	if policy.LandlordID != landlordID {
		return apperrors.NewIntegrity("policy belongs to a different landlord than the permission")
	}
	return nil
}

