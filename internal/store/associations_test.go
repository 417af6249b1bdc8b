package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/database/testutil"
	"github.com/leasehold/leasehold/internal/models"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

func TestAddUserTenantRoleIsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	s, err := NewAssociationStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newFixtures(t, db)

	exists, err := s.ExistsUserTenantRole(ctx, fx.user.ID, fx.tenant.ID, fx.role.ID)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, s.AddUserTenantRole(ctx, fx.user.ID, fx.tenant.ID, fx.role.ID))
	require.NoError(t, s.AddUserTenantRole(ctx, fx.user.ID, fx.tenant.ID, fx.role.ID))

	var count int64
	require.NoError(t, db.Model(&models.UserTenantRole{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	exists, err = s.ExistsUserTenantRole(ctx, fx.user.ID, fx.tenant.ID, fx.role.ID)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestRemoveUserTenantRoleReportsExistence(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	s, err := NewAssociationStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newFixtures(t, db)

	removed, err := s.RemoveUserTenantRole(ctx, fx.user.ID, fx.tenant.ID, fx.role.ID)
	require.NoError(t, err)
	require.False(t, removed)

	require.NoError(t, s.AddUserTenantRole(ctx, fx.user.ID, fx.tenant.ID, fx.role.ID))

	removed, err = s.RemoveUserTenantRole(ctx, fx.user.ID, fx.tenant.ID, fx.role.ID)
	require.NoError(t, err)
	require.True(t, removed)
}

func TestAttachRolePermissionUpsertsPolicyFields(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	s, err := NewAssociationStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newFixtures(t, db)

	fact, err := s.AttachRolePermission(ctx, fx.role.ID, fx.permission.ID, nil, true)
	require.NoError(t, err)
	require.Nil(t, fact.PolicyID)
	require.True(t, fact.InheritDefaultPolicy)
	require.NotNil(t, fact.Permission)
	require.Equal(t, fx.permission.Display(), fact.Permission.Display())

	// last writer wins on the policy fields
	fact, err = s.AttachRolePermission(ctx, fx.role.ID, fx.permission.ID, &fx.policy.ID, false)
	require.NoError(t, err)
	require.NotNil(t, fact.PolicyID)
	require.Equal(t, fx.policy.ID, *fact.PolicyID)
	require.False(t, fact.InheritDefaultPolicy)

	var count int64
	require.NoError(t, db.Model(&models.RolePermissionPolicy{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAttachRolePermissionRejectsCrossLandlord(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	s, err := NewAssociationStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newFixtures(t, db)

	other := models.Landlord{Name: "Other Corp"}
	require.NoError(t, db.Create(&other).Error)
	foreign := models.Permission{Action: "read", Resource: "ledger", LandlordID: other.ID}
	require.NoError(t, db.Create(&foreign).Error)

	_, err = s.AttachRolePermission(ctx, fx.role.ID, foreign.ID, nil, false)
	require.ErrorIs(t, err, apperrors.ErrIntegrity)

	var count int64
	require.NoError(t, db.Model(&models.RolePermissionPolicy{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestDetachRolePermission(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	s, err := NewAssociationStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newFixtures(t, db)

	removed, err := s.DetachRolePermission(ctx, fx.role.ID, fx.permission.ID)
	require.NoError(t, err)
	require.False(t, removed)

	_, err = s.AttachRolePermission(ctx, fx.role.ID, fx.permission.ID, nil, false)
	require.NoError(t, err)

	removed, err = s.DetachRolePermission(ctx, fx.role.ID, fx.permission.ID)
	require.NoError(t, err)
	require.True(t, removed)
}

func TestListByUserResolvesReferencedEntities(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	s, err := NewAssociationStore(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newFixtures(t, db)

	require.NoError(t, s.AddUserTenantRole(ctx, fx.user.ID, fx.tenant.ID, fx.role.ID))
	require.NoError(t, s.AddUserTenantPermission(ctx, fx.user.ID, fx.tenant.ID, fx.permission.ID))

	roles, err := s.ListRolesByUser(ctx, fx.user.ID, fx.tenant.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	require.Equal(t, fx.role.Code, roles[0].Code)

	perms, err := s.ListPermissionsByUser(ctx, fx.user.ID, fx.tenant.ID)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	require.Equal(t, "read:invoice", perms[0].Display())

	// a different tenant sees nothing
	otherTenant := models.Tenant{Name: "Empty", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&otherTenant).Error)
	roles, err = s.ListRolesByUser(ctx, fx.user.ID, otherTenant.ID)
	require.NoError(t, err)
	require.Empty(t, roles)
}

type fixtures struct {
	landlord   models.Landlord
	tenant     models.Tenant
	user       models.User
	role       models.Role
	permission models.Permission
	policy     models.Policy
}

func newFixtures(t *testing.T, db *gorm.DB) fixtures {
	t.Helper()

	fx := fixtures{}

	fx.landlord = models.Landlord{Name: "Acme Holdings"}
	require.NoError(t, db.Create(&fx.landlord).Error)

	fx.tenant = models.Tenant{Name: "Acme East", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&fx.tenant).Error)

	fx.user = models.User{Username: "jdoe", Email: "jdoe@example.com", Password: "hashed"}
	require.NoError(t, db.Create(&fx.user).Error)

	fx.role = models.Role{Code: "billing-admin", Name: "Billing Admin", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&fx.role).Error)

	fx.permission = models.Permission{Action: "read", Resource: "invoice", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&fx.permission).Error)

	fx.policy = models.Policy{
		Code:       "business-hours",
		Name:       "Business Hours",
		TenantID:   fx.tenant.ID,
		LandlordID: fx.landlord.ID,
		Effect:     models.EffectAllow,
	}
	require.NoError(t, db.Create(&fx.policy).Error)

	return fx
}
