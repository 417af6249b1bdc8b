package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/database/testutil"
	"github.com/leasehold/leasehold/internal/models"
	"github.com/leasehold/leasehold/internal/store"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

type resolverFixtures struct {
	landlord      models.Landlord
	tenant        models.Tenant
	role          models.Role
	permission    models.Permission
	defaultPolicy models.Policy
	explicit      models.Policy
}

func newResolverFixtures(t *testing.T, db *gorm.DB) resolverFixtures {
	t.Helper()

	fx := resolverFixtures{}

	fx.landlord = models.Landlord{Name: "Acme Holdings"}
	require.NoError(t, db.Create(&fx.landlord).Error)

	fx.tenant = models.Tenant{Name: "Acme East", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&fx.tenant).Error)

	fx.role = models.Role{Code: "auditor", Name: "Auditor", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&fx.role).Error)

	fx.defaultPolicy = models.Policy{
		Code: "default-allow", Name: "Default Allow",
		TenantID: fx.tenant.ID, LandlordID: fx.landlord.ID,
		Effect: models.EffectAllow,
	}
	require.NoError(t, db.Create(&fx.defaultPolicy).Error)

	fx.explicit = models.Policy{
		Code: "deny-external", Name: "Deny External",
		TenantID: fx.tenant.ID, LandlordID: fx.landlord.ID,
		Effect:     models.EffectDeny,
		Conditions: datatypes.JSON([]byte(`{"network":"external"}`)),
	}
	require.NoError(t, db.Create(&fx.explicit).Error)

	fx.permission = models.Permission{
		Action: "read", Resource: "ledger",
		LandlordID:      fx.landlord.ID,
		DefaultPolicyID: &fx.defaultPolicy.ID,
	}
	require.NoError(t, db.Create(&fx.permission).Error)

	return fx
}

func attach(t *testing.T, db *gorm.DB, roleID, permID string, policyID *string, inherit bool) *models.RolePermissionPolicy {
	t.Helper()

	s, err := store.NewAssociationStore(db)
	require.NoError(t, err)
	fact, err := s.AttachRolePermission(context.Background(), roleID, permID, policyID, inherit)
	require.NoError(t, err)
	return fact
}

func TestResolveExplicitPolicyWinsOverInheritance(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	resolver, err := NewResolver(db, nil)
	require.NoError(t, err)

	fx := newResolverFixtures(t, db)
	// explicit policy plus inherit flag: explicit must win
	fact := attach(t, db, fx.role.ID, fx.permission.ID, &fx.explicit.ID, true)

	policy, err := resolver.Resolve(context.Background(), fact)
	require.NoError(t, err)
	require.NotNil(t, policy)
	require.Equal(t, fx.explicit.ID, policy.ID)
}

func TestResolveFallsBackToPermissionDefault(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	resolver, err := NewResolver(db, nil)
	require.NoError(t, err)

	fx := newResolverFixtures(t, db)
	fact := attach(t, db, fx.role.ID, fx.permission.ID, nil, true)

	policy, err := resolver.Resolve(context.Background(), fact)
	require.NoError(t, err)
	require.NotNil(t, policy)
	require.Equal(t, fx.defaultPolicy.ID, policy.ID)
}

func TestResolvePolicyLessGrantIsDistinctFromInheritance(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	resolver, err := NewResolver(db, nil)
	require.NoError(t, err)

	fx := newResolverFixtures(t, db)
	// neither explicit policy nor inheritance, even though a default exists
	fact := attach(t, db, fx.role.ID, fx.permission.ID, nil, false)

	policy, err := resolver.Resolve(context.Background(), fact)
	require.NoError(t, err)
	require.Nil(t, policy)

	allowed, err := resolver.Evaluate(context.Background(), fact, nil)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestResolveInheritWithoutDefaultIsNil(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	resolver, err := NewResolver(db, nil)
	require.NoError(t, err)

	fx := newResolverFixtures(t, db)
	bare := models.Permission{Action: "delete", Resource: "ledger", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&bare).Error)
	fact := attach(t, db, fx.role.ID, bare.ID, nil, true)

	policy, err := resolver.Resolve(context.Background(), fact)
	require.NoError(t, err)
	require.Nil(t, policy)
}

func TestEvaluateAppliesDenyEffect(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	resolver, err := NewResolver(db, nil)
	require.NoError(t, err)

	fx := newResolverFixtures(t, db)
	fact := attach(t, db, fx.role.ID, fx.permission.ID, &fx.explicit.ID, false)

	// conditions match -> DENY applies
	allowed, err := resolver.Evaluate(context.Background(), fact, map[string]any{"network": "external"})
	require.NoError(t, err)
	require.False(t, allowed)

	// conditions do not match -> the deny rule does not bite
	allowed, err = resolver.Evaluate(context.Background(), fact, map[string]any{"network": "internal"})
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestEvaluateGrantLoadsFactByCompositeKey(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	resolver, err := NewResolver(db, nil)
	require.NoError(t, err)

	fx := newResolverFixtures(t, db)
	attach(t, db, fx.role.ID, fx.permission.ID, &fx.explicit.ID, false)

	allowed, err := resolver.EvaluateGrant(context.Background(), fx.role.ID, fx.permission.ID, map[string]any{"network": "external"})
	require.NoError(t, err)
	require.False(t, allowed)

	allowed, err = resolver.EvaluateGrant(context.Background(), fx.role.ID, fx.permission.ID, map[string]any{"network": "internal"})
	require.NoError(t, err)
	require.True(t, allowed)

	_, err = resolver.EvaluateGrant(context.Background(), fx.role.ID, "missing-permission", nil)
	require.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestEqualityMatcher(t *testing.T) {
	matcher := EqualityMatcher{}
	ctx := context.Background()

	ok, err := matcher.Matches(ctx, nil, map[string]any{"any": "thing"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = matcher.Matches(ctx, datatypes.JSON([]byte(`{"region":"eu","tier":2}`)), map[string]any{"region": "eu", "tier": 2})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = matcher.Matches(ctx, datatypes.JSON([]byte(`{"region":"eu"}`)), map[string]any{"region": "us"})
	require.NoError(t, err)
	require.False(t, ok)

	_, err = matcher.Matches(ctx, datatypes.JSON([]byte(`not-json`)), nil)
	require.Error(t, err)
}
