package authz

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
	"github.com/leasehold/leasehold/internal/store"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
	"github.com/leasehold/leasehold/pkg/logger"
	"github.com/leasehold/leasehold/pkg/metrics"
)

// Engine orchestrates role assignment: it records user-tenant-role facts and
// eagerly materialises each role's permissions into the user's direct grants,
// all inside one transaction so a mid-way failure leaves no partial state.
type Engine struct {
	db           *gorm.DB
	associations *store.AssociationStore
}

// NewEngine constructs an assignment engine backed by the provided database.
func NewEngine(db *gorm.DB) (*Engine, error) {
	if db == nil {
		return nil, errors.New("assignment engine: db is required")
	}
	associations, err := store.NewAssociationStore(db)
	if err != nil {
		return nil, err
	}
	return &Engine{db: db, associations: associations}, nil
}

// AssignmentResult is the structured diff returned by AssignRoles. Callers
// can distinguish explicit grants from role-propagated ones; the split is
// consumed by audit and UI layers.
type AssignmentResult struct {
	RequestedRoleIDs             []string `json:"requested_role_ids"`
	NewlyAssignedRoleIDs         []string `json:"newly_assigned_role_ids"`
	AlreadyAssignedRoleIDs       []string `json:"already_assigned_role_ids"`
	NewlyAssignedPermissionIDs   []string `json:"newly_assigned_permission_ids"`
	AlreadyAssignedPermissionIDs []string `json:"already_assigned_permission_ids"`
	PropagatedPermissionIDs      []string `json:"propagated_permission_ids"`
}

// UnassignmentResult reports which role facts were removed by UnassignRoles.
type UnassignmentResult struct {
	RequestedRoleIDs   []string `json:"requested_role_ids"`
	RemovedRoleIDs     []string `json:"removed_role_ids"`
	NotAssignedRoleIDs []string `json:"not_assigned_role_ids"`
}

// AssignRoles assigns the given roles to the user within the tenant and
// propagates the permissions those roles carry into the user's direct grants.
//
// Role ids are cleaned (trimmed, de-duplicated, order preserved); an empty
// list after cleaning is a validation error. User and tenant must exist, and
// every role must belong to the tenant's landlord; all checks run before any
// mutation. Re-assigning an existing fact is not an error, it is reported as
// already-assigned.
func (e *Engine) AssignRoles(ctx context.Context, userID, tenantID string, roleIDs []string) (*AssignmentResult, error) {
	ctx = ensureContext(ctx)

	userID, tenantID, cleanIDs, err := e.validateInput(userID, tenantID, roleIDs)
	if err != nil {
		return nil, err
	}

	if err := e.ensureUserExists(ctx, userID); err != nil {
		return nil, err
	}
	tenant, err := e.loadTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	result := &AssignmentResult{
		RequestedRoleIDs:             cleanIDs,
		NewlyAssignedRoleIDs:         []string{},
		AlreadyAssignedRoleIDs:       []string{},
		NewlyAssignedPermissionIDs:   []string{},
		AlreadyAssignedPermissionIDs: []string{},
		PropagatedPermissionIDs:      []string{},
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		associations := e.associations.WithTx(tx)

		roles := make([]*models.Role, 0, len(cleanIDs))
		for _, roleID := range cleanIDs {
			role, err := loadRoleWithGrants(ctx, tx, roleID)
			if err != nil {
				return err
			}
			if role.LandlordID != tenant.LandlordID {
				return apperrors.NewIntegrity(
					fmt.Sprintf("role %q belongs to a different landlord than the tenant", role.Code))
			}
			roles = append(roles, role)
		}

		// Derived permission set: order-preserving union across roles.
		derived := make([]string, 0)
		seen := make(map[string]struct{})

		for _, role := range roles {
			exists, err := associations.ExistsUserTenantRole(ctx, userID, tenantID, role.ID)
			if err != nil {
				return err
			}
			if exists {
				result.AlreadyAssignedRoleIDs = append(result.AlreadyAssignedRoleIDs, role.ID)
			} else {
				if err := associations.AddUserTenantRole(ctx, userID, tenantID, role.ID); err != nil {
					return err
				}
				result.NewlyAssignedRoleIDs = append(result.NewlyAssignedRoleIDs, role.ID)
			}

			for _, grant := range role.Grants {
				if _, ok := seen[grant.PermissionID]; ok {
					continue
				}
				seen[grant.PermissionID] = struct{}{}
				derived = append(derived, grant.PermissionID)
			}
		}

		for _, permissionID := range derived {
			exists, err := associations.ExistsUserTenantPermission(ctx, userID, tenantID, permissionID)
			if err != nil {
				return err
			}
			if exists {
				result.AlreadyAssignedPermissionIDs = append(result.AlreadyAssignedPermissionIDs, permissionID)
			} else {
				if err := associations.AddUserTenantPermission(ctx, userID, tenantID, permissionID); err != nil {
					return err
				}
				result.NewlyAssignedPermissionIDs = append(result.NewlyAssignedPermissionIDs, permissionID)
			}
			result.PropagatedPermissionIDs = append(result.PropagatedPermissionIDs, permissionID)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RoleAssignments.WithLabelValues("newly_assigned").Add(float64(len(result.NewlyAssignedRoleIDs)))
	metrics.RoleAssignments.WithLabelValues("already_assigned").Add(float64(len(result.AlreadyAssignedRoleIDs)))
	metrics.PermissionPropagations.WithLabelValues("newly_assigned").Add(float64(len(result.NewlyAssignedPermissionIDs)))
	metrics.PermissionPropagations.WithLabelValues("already_assigned").Add(float64(len(result.AlreadyAssignedPermissionIDs)))

	logger.WithModule("authz").Info("roles assigned",
		zap.String("user_id", userID),
		zap.String("tenant_id", tenantID),
		zap.Int("requested", len(result.RequestedRoleIDs)),
		zap.Int("newly_assigned", len(result.NewlyAssignedRoleIDs)),
		zap.Int("propagated_permissions", len(result.PropagatedPermissionIDs)),
	)

	return result, nil
}

// UnassignRoles removes the (user, tenant, role) facts for the given roles.
// Permissions previously propagated from those roles are left in place; they
// are direct grants once materialised and must be revoked explicitly.
func (e *Engine) UnassignRoles(ctx context.Context, userID, tenantID string, roleIDs []string) (*UnassignmentResult, error) {
	ctx = ensureContext(ctx)

	userID, tenantID, cleanIDs, err := e.validateInput(userID, tenantID, roleIDs)
	if err != nil {
		return nil, err
	}

	if err := e.ensureUserExists(ctx, userID); err != nil {
		return nil, err
	}
	if _, err := e.loadTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	result := &UnassignmentResult{
		RequestedRoleIDs:   cleanIDs,
		RemovedRoleIDs:     []string{},
		NotAssignedRoleIDs: []string{},
	}

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		associations := e.associations.WithTx(tx)

		for _, roleID := range cleanIDs {
			removed, err := associations.RemoveUserTenantRole(ctx, userID, tenantID, roleID)
			if err != nil {
				return err
			}
			if removed {
				result.RemovedRoleIDs = append(result.RemovedRoleIDs, roleID)
			} else {
				result.NotAssignedRoleIDs = append(result.NotAssignedRoleIDs, roleID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (e *Engine) validateInput(userID, tenantID string, roleIDs []string) (string, string, []string, error) {
	userID = trimID(userID)
	tenantID = trimID(tenantID)
	if userID == "" {
		return "", "", nil, apperrors.NewValidation("user id is required")
	}
	if tenantID == "" {
		return "", "", nil, apperrors.NewValidation("tenant id is required")
	}

	cleanIDs := normaliseIDs(roleIDs)
	if len(cleanIDs) == 0 {
		return "", "", nil, apperrors.NewValidation("at least one role id is required")
	}

	return userID, tenantID, cleanIDs, nil
}

func (e *Engine) ensureUserExists(ctx context.Context, userID string) error {
	var user models.User
	err := e.db.WithContext(ctx).Select("id").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NewNotFound("user not found")
	}
	if err != nil {
		return fmt.Errorf("assignment engine: load user: %w", err)
	}
	return nil
}

func (e *Engine) loadTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := e.db.WithContext(ctx).First(&tenant, "id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("tenant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("assignment engine: load tenant: %w", err)
	}
	return &tenant, nil
}

// loadRoleWithGrants fetches the role and its full grant set in one logical
// read so permission propagation never observes a half-updated role.
func loadRoleWithGrants(ctx context.Context, db *gorm.DB, roleID string) (*models.Role, error) {
	var role models.Role
	err := db.WithContext(ctx).
		Preload("Grants").
		Preload("Grants.Permission").
		Preload("Grants.Policy").
		First(&role, "id = ?", roleID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound(fmt.Sprintf("role %s not found", roleID))
	}
	if err != nil {
		return nil, fmt.Errorf("assignment engine: load role: %w", err)
	}
	return &role, nil
}
