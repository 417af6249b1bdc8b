package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
	"github.com/leasehold/leasehold/pkg/logger"
)

var (
	// ErrLandlordNotFound indicates the requested landlord does not exist.
	ErrLandlordNotFound = apperrors.New("LANDLORD_NOT_FOUND", "Landlord not found", http.StatusNotFound)
	// ErrLandlordExists signals a landlord name collision.
	ErrLandlordExists = apperrors.New("CONFLICT", "Landlord name already exists", http.StatusConflict)
)

// CreateLandlordInput captures new landlord metadata.
type CreateLandlordInput struct {
	Name   string
	Config map[string]any
}

// UpdateLandlordInput describes mutable landlord fields.
type UpdateLandlordInput struct {
	Name   *string
	Config map[string]any
}

// LandlordService manages the roots of the ownership hierarchy.
type LandlordService struct {
	db *gorm.DB
}

// NewLandlordService constructs a LandlordService instance.
func NewLandlordService(db *gorm.DB) (*LandlordService, error) {
	if db == nil {
		return nil, errors.New("landlord service: db is required")
	}
	return &LandlordService{db: db}, nil
}

// Create registers a new landlord.
func (s *LandlordService) Create(ctx context.Context, input CreateLandlordInput) (*models.Landlord, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewValidation("landlord name is required")
	}

	config, err := toJSON(input.Config)
	if err != nil {
		return nil, apperrors.NewValidation("landlord config must be JSON-serialisable")
	}

	landlord := &models.Landlord{
		Name:   name,
		Config: config,
	}

	if err := s.db.WithContext(ctx).Create(landlord).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrLandlordExists
		}
		return nil, fmt.Errorf("landlord service: create landlord: %w", err)
	}

	logger.WithModule("services").Info("landlord created",
		zap.String("landlord_id", landlord.ID),
		zap.String("name", landlord.Name),
	)

	return landlord, nil
}

// GetByID loads a landlord by identifier.
func (s *LandlordService) GetByID(ctx context.Context, id string) (*models.Landlord, error) {
	ctx = ensureContext(ctx)

	var landlord models.Landlord
	err := s.db.WithContext(ctx).First(&landlord, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLandlordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("landlord service: load landlord: %w", err)
	}
	return &landlord, nil
}

// ListPaged returns one page of landlords plus the total count.
func (s *LandlordService) ListPaged(ctx context.Context, page ListPage) ([]models.Landlord, int64, error) {
	ctx = ensureContext(ctx)
	page = page.normalise()

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Landlord{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("landlord service: count landlords: %w", err)
	}

	var landlords []models.Landlord
	err := s.db.WithContext(ctx).Order("created_at ASC").
		Offset(page.offset()).Limit(page.PerPage).
		Find(&landlords).Error
	if err != nil {
		return nil, 0, fmt.Errorf("landlord service: list landlords: %w", err)
	}
	return landlords, total, nil
}

// Update modifies landlord metadata.
func (s *LandlordService) Update(ctx context.Context, id string, input UpdateLandlordInput) (*models.Landlord, error) {
	ctx = ensureContext(ctx)

	landlord, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != landlord.Name {
			updates["name"] = name
		}
	}
	if input.Config != nil {
		config, err := toJSON(input.Config)
		if err != nil {
			return nil, apperrors.NewValidation("landlord config must be JSON-serialisable")
		}
		updates["config"] = config
	}

	if len(updates) == 0 {
		return landlord, nil
	}

	if err := s.db.WithContext(ctx).Model(landlord).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrLandlordExists
		}
		return nil, fmt.Errorf("landlord service: update landlord: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Delete removes a landlord and cascades to everything it owns: tenants,
// roles, permissions, policies, and every pivot fact referencing them. The
// cascade runs in one transaction so a failure leaves the hierarchy intact.
func (s *LandlordService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	landlord, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenantIDs []string
		if err := tx.Model(&models.Tenant{}).Where("landlord_id = ?", id).Pluck("id", &tenantIDs).Error; err != nil {
			return fmt.Errorf("collect tenants: %w", err)
		}

		var roleIDs []string
		if err := tx.Model(&models.Role{}).Where("landlord_id = ?", id).Pluck("id", &roleIDs).Error; err != nil {
			return fmt.Errorf("collect roles: %w", err)
		}

		if len(tenantIDs) > 0 {
			if err := tx.Where("tenant_id IN ?", tenantIDs).Delete(&models.UserTenantRole{}).Error; err != nil {
				return fmt.Errorf("delete user tenant roles: %w", err)
			}
			if err := tx.Where("tenant_id IN ?", tenantIDs).Delete(&models.UserTenantPermission{}).Error; err != nil {
				return fmt.Errorf("delete user tenant permissions: %w", err)
			}
		}

		if len(roleIDs) > 0 {
			if err := tx.Where("role_id IN ?", roleIDs).Delete(&models.RolePermissionPolicy{}).Error; err != nil {
				return fmt.Errorf("delete role grants: %w", err)
			}
		}

		// default-policy references point at policies we are about to delete
		if err := tx.Model(&models.Permission{}).Where("landlord_id = ?", id).
			Update("default_policy_id", nil).Error; err != nil {
			return fmt.Errorf("clear default policies: %w", err)
		}

		if err := tx.Where("landlord_id = ?", id).Delete(&models.Policy{}).Error; err != nil {
			return fmt.Errorf("delete policies: %w", err)
		}
		if err := tx.Where("landlord_id = ?", id).Delete(&models.Permission{}).Error; err != nil {
			return fmt.Errorf("delete permissions: %w", err)
		}
		if err := tx.Where("landlord_id = ?", id).Delete(&models.Role{}).Error; err != nil {
			return fmt.Errorf("delete roles: %w", err)
		}
		if err := tx.Where("landlord_id = ?", id).Delete(&models.Tenant{}).Error; err != nil {
			return fmt.Errorf("delete tenants: %w", err)
		}
		if err := tx.Delete(landlord).Error; err != nil {
			return fmt.Errorf("delete landlord: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("landlord service: cascade delete: %w", err)
	}

	logger.WithModule("services").Info("landlord deleted", zap.String("landlord_id", id))
	return nil
}
