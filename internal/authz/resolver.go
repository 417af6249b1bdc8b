package authz

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

// Resolver computes the effective policy for a role-permission grant.
//
// The governing order is fixed: an explicit policy always wins, inheritance
// of the permission's default policy comes second, and a grant with neither
// is policy-less. A policy-less grant is an unconditional allow; that open
// default is a product-level decision, not an implementation accident.
type Resolver struct {
	db      *gorm.DB
	matcher ConditionMatcher
}

// NewResolver constructs a Resolver. A nil matcher falls back to EqualityMatcher.
func NewResolver(db *gorm.DB, matcher ConditionMatcher) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("policy resolver: db is required")
	}
	if matcher == nil {
		matcher = EqualityMatcher{}
	}
	return &Resolver{db: db, matcher: matcher}, nil
}

// Resolve returns the policy governing the grant, or nil for a policy-less
// grant. Resolution is total: a nil result is a defined outcome, not an error.
func (r *Resolver) Resolve(ctx context.Context, fact *models.RolePermissionPolicy) (*models.Policy, error) {
	if fact == nil {
		return nil, apperrors.NewValidation("grant is required")
	}

	// Explicit override first. InheritDefaultPolicy is ignored when an
	// explicit policy is present.
	if fact.PolicyID != nil && *fact.PolicyID != "" {
		if fact.Policy != nil && fact.Policy.ID == *fact.PolicyID {
			return fact.Policy, nil
		}
		return r.loadPolicy(ctx, *fact.PolicyID)
	}

	if fact.InheritDefaultPolicy {
		permission := fact.Permission
		if permission == nil || (permission.DefaultPolicyID != nil && permission.DefaultPolicy == nil) {
			loaded, err := r.loadPermission(ctx, fact.PermissionID)
			if err != nil {
				return nil, err
			}
			permission = loaded
		}
		// May legitimately be nil: "inherit but none exists".
		return permission.DefaultPolicy, nil
	}

	return nil, nil
}

// Evaluate resolves the grant's policy and applies its effect against the
// evaluation context. A nil policy allows unconditionally. An ALLOW policy
// allows when its conditions match; a DENY policy denies when they match.
func (r *Resolver) Evaluate(ctx context.Context, fact *models.RolePermissionPolicy, eval map[string]any) (bool, error) {
	policy, err := r.Resolve(ctx, fact)
	if err != nil {
		return false, err
	}
	if policy == nil {
		return true, nil
	}

	matched, err := r.matcher.Matches(ctx, policy.Conditions, eval)
	if err != nil {
		return false, err
	}

	if policy.Effect == models.EffectDeny {
		return !matched, nil
	}
	return matched, nil
}

// EvaluateGrant loads the role-permission fact by its composite key and
// evaluates it against the evaluation context. A missing grant is a not-found
// error rather than a deny; the caller distinguishes "no grant" from "grant
// denied by policy".
func (r *Resolver) EvaluateGrant(ctx context.Context, roleID, permissionID string, eval map[string]any) (bool, error) {
	ctx = ensureContext(ctx)

	roleID = trimID(roleID)
	permissionID = trimID(permissionID)
	if roleID == "" || permissionID == "" {
		return false, apperrors.NewValidation("role id and permission id are required")
	}

	var fact models.RolePermissionPolicy
	err := r.db.WithContext(ctx).
		Preload("Permission").
		Preload("Permission.DefaultPolicy").
		Preload("Policy").
		First(&fact, "role_id = ? AND permission_id = ?", roleID, permissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, apperrors.NewNotFound("role permission grant not found")
	}
	if err != nil {
		return false, fmt.Errorf("policy resolver: load grant: %w", err)
	}

	return r.Evaluate(ctx, &fact, eval)
}

func (r *Resolver) loadPolicy(ctx context.Context, policyID string) (*models.Policy, error) {
	var policy models.Policy
	err := r.db.WithContext(ctx).First(&policy, "id = ?", policyID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("policy not found")
	}
	if err != nil {
		return nil, fmt.Errorf("policy resolver: load policy: %w", err)
	}
	return &policy, nil
}

func (r *Resolver) loadPermission(ctx context.Context, permissionID string) (*models.Permission, error) {
	var permission models.Permission
	err := r.db.WithContext(ctx).
		Preload("DefaultPolicy").
		First(&permission, "id = ?", permissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("permission not found")
	}
	if err != nil {
		return nil, fmt.Errorf("policy resolver: load permission: %w", err)
	}
	return &permission, nil
}
