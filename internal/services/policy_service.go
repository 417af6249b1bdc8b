package services

import (
	"bytes"
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
	// ErrPolicyNotFound indicates the requested policy does not exist.
	ErrPolicyNotFound = apperrors.New("POLICY_NOT_FOUND", "Policy not found", http.StatusNotFound)
	// ErrPolicyExists signals a policy code collision with a different payload.
	ErrPolicyExists = apperrors.New("CONFLICT", "Policy code already exists for this tenant", http.StatusConflict)
)

// CreatePolicyInput describes the payload accepted by Create.
type CreatePolicyInput struct {
	TenantID    string
	Code        string
	Name        string
	Description string
	Effect      models.PolicyEffect
	Actions     []string
	Resources   []string
	Conditions  map[string]any
}

// UpdatePolicyInput describes mutable policy fields. Code, tenant, and
// landlord are fixed once created.
type UpdatePolicyInput struct {
	Name        *string
	Description *string
	Effect      *models.PolicyEffect
	Actions     []string
	Resources   []string
	Conditions  map[string]any
}

// PolicyService manages ALLOW/DENY rules scoped to a tenant.
type PolicyService struct {
	db *gorm.DB
}

// NewPolicyService constructs a PolicyService using the provided database handle.
func NewPolicyService(db *gorm.DB) (*PolicyService, error) {
	if db == nil {
		return nil, errors.New("policy service: db is required")
	}
	return &PolicyService{db: db}, nil
}

// Create registers a new policy under a tenant. The landlord is derived from
// the tenant, never supplied by the caller. Re-creating an identical policy
// returns the existing row; a code collision with different fields conflicts.
func (s *PolicyService) Create(ctx context.Context, input CreatePolicyInput) (*models.Policy, error) {
	ctx = ensureContext(ctx)

	tenantID := strings.TrimSpace(input.TenantID)
	code := strings.TrimSpace(input.Code)
	name := strings.TrimSpace(input.Name)
	if tenantID == "" {
		return nil, apperrors.NewValidation("tenant id is required")
	}
	if code == "" {
		return nil, apperrors.NewValidation("policy code is required")
	}
	if name == "" {
		return nil, apperrors.NewValidation("policy name is required")
	}

	effect := input.Effect
	if effect == "" {
		effect = models.EffectAllow
	}
	if !effect.Valid() {
		return nil, apperrors.NewValidation("policy effect must be ALLOW or DENY")
	}

	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTenantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("policy service: load tenant: %w", err)
	}

	actions, err := toJSON(input.Actions)
	if err != nil {
		return nil, apperrors.NewValidation("policy actions must be JSON-serialisable")
	}
	resources, err := toJSON(input.Resources)
	if err != nil {
		return nil, apperrors.NewValidation("policy resources must be JSON-serialisable")
	}
	conditions, err := toJSON(input.Conditions)
	if err != nil {
		return nil, apperrors.NewValidation("policy conditions must be JSON-serialisable")
	}

	policy := &models.Policy{
		Code:        code,
		TenantID:    tenant.ID,
		LandlordID:  tenant.LandlordID,
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Effect:      effect,
		Actions:     actions,
		Resources:   resources,
		Conditions:  conditions,
	}

	if err := s.db.WithContext(ctx).Create(policy).Error; err != nil {
		if !isUniqueConstraintError(err) {
			return nil, fmt.Errorf("policy service: create policy: %w", err)
		}

		var existing models.Policy
		loadErr := s.db.WithContext(ctx).
			First(&existing, "code = ? AND tenant_id = ?", code, tenantID).Error
		if loadErr != nil {
			return nil, fmt.Errorf("policy service: load existing policy: %w", loadErr)
		}
		if samePolicyPayload(&existing, policy) {
			return &existing, nil
		}
		return nil, ErrPolicyExists
	}

	return policy, nil
}

// GetByID loads a policy by identifier.
func (s *PolicyService) GetByID(ctx context.Context, id string) (*models.Policy, error) {
	ctx = ensureContext(ctx)

	var policy models.Policy
	err := s.db.WithContext(ctx).First(&policy, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("policy service: load policy: %w", err)
	}
	return &policy, nil
}

// List returns policies, optionally scoped to one tenant.
func (s *PolicyService) List(ctx context.Context, tenantID string) ([]models.Policy, error) {
	ctx = ensureContext(ctx)

	query := s.db.WithContext(ctx).Order("created_at ASC")
	if tenantID = strings.TrimSpace(tenantID); tenantID != "" {
		query = query.Where("tenant_id = ?", tenantID)
	}

	var policies []models.Policy
	if err := query.Find(&policies).Error; err != nil {
		return nil, fmt.Errorf("policy service: list policies: %w", err)
	}
	return policies, nil
}

// Update modifies policy metadata and its rule payload.
func (s *PolicyService) Update(ctx context.Context, id string, input UpdatePolicyInput) (*models.Policy, error) {
	ctx = ensureContext(ctx)

	policy, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
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
	if input.Effect != nil {
		if !input.Effect.Valid() {
			return nil, apperrors.NewValidation("policy effect must be ALLOW or DENY")
		}
		updates["effect"] = *input.Effect
	}
	if input.Actions != nil {
		actions, err := toJSON(input.Actions)
		if err != nil {
			return nil, apperrors.NewValidation("policy actions must be JSON-serialisable")
		}
		updates["actions"] = actions
	}
	if input.Resources != nil {
		resources, err := toJSON(input.Resources)
		if err != nil {
			return nil, apperrors.NewValidation("policy resources must be JSON-serialisable")
		}
		updates["resources"] = resources
	}
	if input.Conditions != nil {
		conditions, err := toJSON(input.Conditions)
		if err != nil {
			return nil, apperrors.NewValidation("policy conditions must be JSON-serialisable")
		}
		updates["conditions"] = conditions
	}

	if len(updates) == 0 {
		return policy, nil
	}

	if err := s.db.WithContext(ctx).Model(policy).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("policy service: update policy: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a policy. References from permissions and role grants are
// cleared rather than cascaded: the grants survive and fall back to their
// permission defaults or to the open policy.
func (s *PolicyService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	policy, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Permission{}).Where("default_policy_id = ?", id).
			Update("default_policy_id", nil).Error; err != nil {
			return fmt.Errorf("clear default policy references: %w", err)
		}
		if err := tx.Model(&models.RolePermissionPolicy{}).Where("policy_id = ?", id).
			Update("policy_id", nil).Error; err != nil {
			return fmt.Errorf("clear grant policy references: %w", err)
		}
		if err := tx.Delete(policy).Error; err != nil {
			return fmt.Errorf("delete policy: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("policy service: cascade delete: %w", err)
	}
	return nil
}

func samePolicyPayload(a, b *models.Policy) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Effect == b.Effect &&
		bytes.Equal(a.Actions, b.Actions) &&
		bytes.Equal(a.Resources, b.Resources) &&
		bytes.Equal(a.Conditions, b.Conditions)
}
