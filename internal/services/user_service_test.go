package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leasehold/leasehold/internal/database/testutil"
	"github.com/leasehold/leasehold/internal/models"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

func TestUserCreateHashesPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	user, err := svc.Create(ctx, CreateUserInput{
		Username: "jdoe",
		Email:    "JDoe@Example.com",
		Password: "correct horse battery",
	})
	require.NoError(t, err)
	require.Equal(t, "jdoe@example.com", user.Email)
	require.NotEqual(t, "correct horse battery", user.Password)

	verified, err := svc.VerifyCredentials(ctx, "jdoe", "correct horse battery")
	require.NoError(t, err)
	require.Equal(t, user.ID, verified.ID)

	_, err = svc.VerifyCredentials(ctx, "jdoe", "wrong password")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestUserCreateRejectsShortPassword(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateUserInput{
		Username: "jdoe", Email: "jdoe@example.com", Password: "short",
	})
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestUserCreateRejectsDuplicateUsername(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.Create(ctx, CreateUserInput{Username: "jdoe", Email: "jdoe@example.com", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateUserInput{Username: "jdoe", Email: "other@example.com", Password: "password123"})
	require.ErrorIs(t, err, ErrUserExists)
}

func TestUserGrantPermissionRequiresSameLandlord(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newServiceFixtures(t, db)

	other := models.Landlord{Name: "Globex"}
	require.NoError(t, db.Create(&other).Error)
	foreign := models.Permission{Action: "read", Resource: "lease", LandlordID: other.ID}
	require.NoError(t, db.Create(&foreign).Error)

	user, err := svc.Create(ctx, CreateUserInput{Username: "jdoe", Email: "jdoe@example.com", Password: "password123"})
	require.NoError(t, err)

	err = svc.GrantPermission(ctx, user.ID, fx.tenant.ID, foreign.ID)
	require.ErrorIs(t, err, apperrors.ErrIntegrity)

	var count int64
	require.NoError(t, db.Model(&models.UserTenantPermission{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestUserGrantAndRevokePermission(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newServiceFixtures(t, db)

	perm := models.Permission{Action: "read", Resource: "lease", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&perm).Error)

	user, err := svc.Create(ctx, CreateUserInput{Username: "jdoe", Email: "jdoe@example.com", Password: "password123"})
	require.NoError(t, err)

	require.NoError(t, svc.GrantPermission(ctx, user.ID, fx.tenant.ID, perm.ID))
	// granting again is a no-op, not an error
	require.NoError(t, svc.GrantPermission(ctx, user.ID, fx.tenant.ID, perm.ID))

	var count int64
	require.NoError(t, db.Model(&models.UserTenantPermission{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	removed, err := svc.RevokePermission(ctx, user.ID, fx.tenant.ID, perm.ID)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = svc.RevokePermission(ctx, user.ID, fx.tenant.ID, perm.ID)
	require.NoError(t, err)
	require.False(t, removed)
}

func TestUserDeleteRemovesGrantFacts(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newServiceFixtures(t, db)

	role := models.Role{Code: "viewer", Name: "Viewer", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&role).Error)
	perm := models.Permission{Action: "read", Resource: "lease", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&perm).Error)

	user, err := svc.Create(ctx, CreateUserInput{Username: "jdoe", Email: "jdoe@example.com", Password: "password123"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.UserTenantRole{UserID: user.ID, TenantID: fx.tenant.ID, RoleID: role.ID}).Error)
	require.NoError(t, db.Create(&models.UserTenantPermission{UserID: user.ID, TenantID: fx.tenant.ID, PermissionID: perm.ID}).Error)

	require.NoError(t, svc.Delete(ctx, user.ID))

	var roles, perms int64
	require.NoError(t, db.Model(&models.UserTenantRole{}).Count(&roles).Error)
	require.NoError(t, db.Model(&models.UserTenantPermission{}).Count(&perms).Error)
	require.Zero(t, roles)
	require.Zero(t, perms)

	_, err = svc.GetByID(ctx, user.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
}
