package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leasehold/leasehold/internal/database/testutil"
	"github.com/leasehold/leasehold/internal/models"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

func TestLandlordCreateRejectsDuplicateName(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewLandlordService(db)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Create(ctx, CreateLandlordInput{Name: "Acme Holdings"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateLandlordInput{Name: "Acme Holdings"})
	require.ErrorIs(t, err, ErrLandlordExists)
}

func TestLandlordCreateRejectsBlankName(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewLandlordService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateLandlordInput{Name: "   "})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestLandlordListPaged(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewLandlordService(db)
	require.NoError(t, err)

	ctx := context.Background()
	for _, name := range []string{"Acme Holdings", "Birch Estates", "Cedar Group"} {
		_, err := svc.Create(ctx, CreateLandlordInput{Name: name})
		require.NoError(t, err)
	}

	page, total, err := svc.ListPaged(ctx, ListPage{Page: 1, PerPage: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, page, 2)

	page, total, err = svc.ListPaged(ctx, ListPage{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, page, 1)

	// out-of-range values fall back to defaults
	page, _, err = svc.ListPaged(ctx, ListPage{Page: -1, PerPage: 0})
	require.NoError(t, err)
	require.Len(t, page, 3)
}

func TestLandlordDeleteCascadesOwnedEntities(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewLandlordService(db)
	require.NoError(t, err)

	ctx := context.Background()

	landlord, err := svc.Create(ctx, CreateLandlordInput{Name: "Acme Holdings"})
	require.NoError(t, err)

	tenant := models.Tenant{Name: "Acme East", LandlordID: landlord.ID}
	require.NoError(t, db.Create(&tenant).Error)
	role := models.Role{Code: "viewer", Name: "Viewer", LandlordID: landlord.ID}
	require.NoError(t, db.Create(&role).Error)
	perm := models.Permission{Action: "read", Resource: "lease", LandlordID: landlord.ID}
	require.NoError(t, db.Create(&perm).Error)
	policy := models.Policy{
		Code: "open", Name: "Open",
		TenantID: tenant.ID, LandlordID: landlord.ID,
		Effect: models.EffectAllow,
	}
	require.NoError(t, db.Create(&policy).Error)
	require.NoError(t, db.Model(&perm).Update("default_policy_id", policy.ID).Error)

	user := models.User{Username: "jdoe", Email: "jdoe@example.com", Password: "hashed"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.UserTenantRole{UserID: user.ID, TenantID: tenant.ID, RoleID: role.ID}).Error)
	require.NoError(t, db.Create(&models.UserTenantPermission{UserID: user.ID, TenantID: tenant.ID, PermissionID: perm.ID}).Error)
	require.NoError(t, db.Create(&models.RolePermissionPolicy{RoleID: role.ID, PermissionID: perm.ID}).Error)

	require.NoError(t, svc.Delete(ctx, landlord.ID))

	for _, model := range []any{
		&models.Tenant{}, &models.Role{}, &models.Permission{}, &models.Policy{},
		&models.UserTenantRole{}, &models.UserTenantPermission{}, &models.RolePermissionPolicy{},
	} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		require.Zero(t, count)
	}

	// the user survives; only their grants under this landlord are removed
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.EqualValues(t, 1, users)

	_, err = svc.GetByID(ctx, landlord.ID)
	require.ErrorIs(t, err, ErrLandlordNotFound)
}
