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

// ErrTenantNotFound indicates the requested tenant does not exist.
var ErrTenantNotFound = apperrors.New("TENANT_NOT_FOUND", "Tenant not found", http.StatusNotFound)

// CreateTenantInput captures new tenant metadata.
type CreateTenantInput struct {
	LandlordID  string
	Name        string
	Description string
	Domain      string
	Config      map[string]any
}

// UpdateTenantInput describes mutable tenant fields.
type UpdateTenantInput struct {
	Name        *string
	Description *string
	Domain      *string
	Config      map[string]any
}

// TenantService handles tenant lifecycle under a landlord.
type TenantService struct {
	db *gorm.DB
}

// NewTenantService constructs a TenantService instance.
func NewTenantService(db *gorm.DB) (*TenantService, error) {
	if db == nil {
		return nil, errors.New("tenant service: db is required")
	}
	return &TenantService{db: db}, nil
}

// Create registers a new tenant under an existing landlord.
func (s *TenantService) Create(ctx context.Context, input CreateTenantInput) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	landlordID := strings.TrimSpace(input.LandlordID)
	name := strings.TrimSpace(input.Name)
	if landlordID == "" {
		return nil, apperrors.NewValidation("landlord id is required")
	}
	if name == "" {
		return nil, apperrors.NewValidation("tenant name is required")
	}

	var landlord models.Landlord
	err := s.db.WithContext(ctx).First(&landlord, "id = ?", landlordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLandlordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant service: load landlord: %w", err)
	}

	config, err := toJSON(input.Config)
	if err != nil {
		return nil, apperrors.NewValidation("tenant config must be JSON-serialisable")
	}

	tenant := &models.Tenant{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Domain:      strings.TrimSpace(input.Domain),
		Config:      config,
		LandlordID:  landlord.ID,
	}

	if err := s.db.WithContext(ctx).Create(tenant).Error; err != nil {
		return nil, fmt.Errorf("tenant service: create tenant: %w", err)
	}

	return tenant, nil
}

// GetByID loads a tenant by identifier.
func (s *TenantService) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tenant service: load tenant: %w", err)
	}
	return &tenant, nil
}

// ListPaged returns one page of tenants plus the total count, optionally
// scoped to one landlord.
func (s *TenantService) ListPaged(ctx context.Context, landlordID string, page ListPage) ([]models.Tenant, int64, error) {
	ctx = ensureContext(ctx)
	page = page.normalise()

	countQuery := s.db.WithContext(ctx).Model(&models.Tenant{})
	listQuery := s.db.WithContext(ctx).Order("created_at ASC")
	if landlordID = strings.TrimSpace(landlordID); landlordID != "" {
		countQuery = countQuery.Where("landlord_id = ?", landlordID)
		listQuery = listQuery.Where("landlord_id = ?", landlordID)
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("tenant service: count tenants: %w", err)
	}

	var tenants []models.Tenant
	err := listQuery.
		Offset(page.offset()).Limit(page.PerPage).
		Find(&tenants).Error
	if err != nil {
		return nil, 0, fmt.Errorf("tenant service: list tenants: %w", err)
	}
	return tenants, total, nil
}

// Update modifies tenant metadata.
func (s *TenantService) Update(ctx context.Context, id string, input UpdateTenantInput) (*models.Tenant, error) {
	ctx = ensureContext(ctx)

	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != "" && name != tenant.Name {
			updates["name"] = name
		}
	}
	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Domain != nil {
		updates["domain"] = strings.TrimSpace(*input.Domain)
	}
	if input.Config != nil {
		config, err := toJSON(input.Config)
		if err != nil {
			return nil, apperrors.NewValidation("tenant config must be JSON-serialisable")
		}
		updates["config"] = config
	}

	if len(updates) == 0 {
		return tenant, nil
	}

	if err := s.db.WithContext(ctx).Model(tenant).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("tenant service: update tenant: %w", err)
	}

	return s.GetByID(ctx, id)
}

// Delete removes a tenant together with its pivot facts and policies.
func (s *TenantService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	tenant, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tenant_id = ?", id).Delete(&models.UserTenantRole{}).Error; err != nil {
			return fmt.Errorf("delete user tenant roles: %w", err)
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.UserTenantPermission{}).Error; err != nil {
			return fmt.Errorf("delete user tenant permissions: %w", err)
		}

		// permissions may inherit defaults from this tenant's policies
		var policyIDs []string
		if err := tx.Model(&models.Policy{}).Where("tenant_id = ?", id).Pluck("id", &policyIDs).Error; err != nil {
			return fmt.Errorf("collect policies: %w", err)
		}
		if len(policyIDs) > 0 {
			if err := tx.Model(&models.Permission{}).Where("default_policy_id IN ?", policyIDs).
				Update("default_policy_id", nil).Error; err != nil {
				return fmt.Errorf("clear default policies: %w", err)
			}
			if err := tx.Model(&models.RolePermissionPolicy{}).Where("policy_id IN ?", policyIDs).
				Update("policy_id", nil).Error; err != nil {
				return fmt.Errorf("clear grant policies: %w", err)
			}
			if err := tx.Where("id IN ?", policyIDs).Delete(&models.Policy{}).Error; err != nil {
				return fmt.Errorf("delete policies: %w", err)
			}
		}

		if err := tx.Delete(tenant).Error; err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tenant service: cascade delete: %w", err)
	}

	return nil
}
