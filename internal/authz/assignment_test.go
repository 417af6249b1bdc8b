package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/database/testutil"
	"github.com/leasehold/leasehold/internal/models"
	"github.com/leasehold/leasehold/internal/store"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

type assignmentFixtures struct {
	landlord models.Landlord
	tenant   models.Tenant
	user     models.User
}

func newAssignmentFixtures(t *testing.T, db *gorm.DB) assignmentFixtures {
	t.Helper()

	fx := assignmentFixtures{}

	fx.landlord = models.Landlord{Name: "Acme Holdings"}
	require.NoError(t, db.Create(&fx.landlord).Error)

	fx.tenant = models.Tenant{Name: "Acme East", LandlordID: fx.landlord.ID}
	require.NoError(t, db.Create(&fx.tenant).Error)

	fx.user = models.User{Username: "jdoe", Email: "jdoe@example.com", Password: "hashed"}
	require.NoError(t, db.Create(&fx.user).Error)

	return fx
}

func createRoleWithPermissions(t *testing.T, db *gorm.DB, landlordID, code string, permissions ...*models.Permission) models.Role {
	t.Helper()

	role := models.Role{Code: code, Name: code, LandlordID: landlordID}
	require.NoError(t, db.Create(&role).Error)

	s, err := store.NewAssociationStore(db)
	require.NoError(t, err)
	for _, perm := range permissions {
		_, err := s.AttachRolePermission(context.Background(), role.ID, perm.ID, nil, false)
		require.NoError(t, err)
	}
	return role
}

func createPermission(t *testing.T, db *gorm.DB, landlordID, action, resource string) *models.Permission {
	t.Helper()

	perm := models.Permission{Action: action, Resource: resource, LandlordID: landlordID}
	require.NoError(t, db.Create(&perm).Error)
	return &perm
}

func TestAssignRolesIsIdempotent(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	engine, err := NewEngine(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newAssignmentFixtures(t, db)
	perm := createPermission(t, db, fx.landlord.ID, "read", "invoice")
	role := createRoleWithPermissions(t, db, fx.landlord.ID, "viewer", perm)

	first, err := engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{role.ID})
	require.NoError(t, err)
	require.Equal(t, []string{role.ID}, first.NewlyAssignedRoleIDs)
	require.Empty(t, first.AlreadyAssignedRoleIDs)
	require.Equal(t, []string{perm.ID}, first.NewlyAssignedPermissionIDs)

	second, err := engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{role.ID})
	require.NoError(t, err)
	require.Empty(t, second.NewlyAssignedRoleIDs)
	require.Equal(t, []string{role.ID}, second.AlreadyAssignedRoleIDs)
	require.Empty(t, second.NewlyAssignedPermissionIDs)
	require.Equal(t, []string{perm.ID}, second.AlreadyAssignedPermissionIDs)

	var count int64
	require.NoError(t, db.Model(&models.UserTenantRole{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestAssignRolesPropagatesAllRolePermissions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	engine, err := NewEngine(db)
	require.NoError(t, err)
	query, err := NewQuery(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newAssignmentFixtures(t, db)
	read := createPermission(t, db, fx.landlord.ID, "read", "invoice")
	write := createPermission(t, db, fx.landlord.ID, "write", "invoice")
	approve := createPermission(t, db, fx.landlord.ID, "approve", "invoice")
	role := createRoleWithPermissions(t, db, fx.landlord.ID, "billing-admin", read, write, approve)

	_, err = engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{role.ID})
	require.NoError(t, err)

	for _, perm := range []*models.Permission{read, write, approve} {
		ok, err := query.UserHasPermission(ctx, fx.user.ID, fx.tenant.ID, perm.Action, perm.Resource)
		require.NoError(t, err)
		require.True(t, ok, "expected %s to be propagated", perm.Display())
	}
}

func TestAssignRolesDiffSeparatesPropagationSources(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	engine, err := NewEngine(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newAssignmentFixtures(t, db)
	p1 := createPermission(t, db, fx.landlord.ID, "read", "report")
	p2 := createPermission(t, db, fx.landlord.ID, "export", "report")
	r1 := createRoleWithPermissions(t, db, fx.landlord.ID, "reader", p1)
	r2 := createRoleWithPermissions(t, db, fx.landlord.ID, "exporter", p1, p2)

	_, err = engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{r1.ID})
	require.NoError(t, err)

	result, err := engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{r1.ID, r2.ID})
	require.NoError(t, err)

	require.Equal(t, []string{r2.ID}, result.NewlyAssignedRoleIDs)
	require.Equal(t, []string{r1.ID}, result.AlreadyAssignedRoleIDs)
	require.Equal(t, []string{p2.ID}, result.NewlyAssignedPermissionIDs)
	require.Equal(t, []string{p1.ID}, result.AlreadyAssignedPermissionIDs)
	require.ElementsMatch(t, []string{p1.ID, p2.ID}, result.PropagatedPermissionIDs)
}

func TestAssignRolesRejectsCrossLandlordRole(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	engine, err := NewEngine(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newAssignmentFixtures(t, db)

	other := models.Landlord{Name: "Rival Corp"}
	require.NoError(t, db.Create(&other).Error)
	foreignRole := createRoleWithPermissions(t, db, other.ID, "intruder")
	localRole := createRoleWithPermissions(t, db, fx.landlord.ID, "local")

	_, err = engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{localRole.ID, foreignRole.ID})
	require.ErrorIs(t, err, apperrors.ErrIntegrity)

	// transaction rollback leaves no facts, including the valid role
	var count int64
	require.NoError(t, db.Model(&models.UserTenantRole{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAssignRolesRejectsEmptyInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	engine, err := NewEngine(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newAssignmentFixtures(t, db)

	_, err = engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{"", "  "})
	require.ErrorIs(t, err, apperrors.ErrValidation)

	var roleFacts, permFacts int64
	require.NoError(t, db.Model(&models.UserTenantRole{}).Count(&roleFacts).Error)
	require.NoError(t, db.Model(&models.UserTenantPermission{}).Count(&permFacts).Error)
	require.Zero(t, roleFacts)
	require.Zero(t, permFacts)
}

func TestAssignRolesDropsDuplicateIDs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	engine, err := NewEngine(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newAssignmentFixtures(t, db)
	role := createRoleWithPermissions(t, db, fx.landlord.ID, "viewer")

	result, err := engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{role.ID, role.ID, " " + role.ID + " "})
	require.NoError(t, err)
	require.Equal(t, []string{role.ID}, result.RequestedRoleIDs)
	require.Equal(t, []string{role.ID}, result.NewlyAssignedRoleIDs)
}

func TestAssignRolesUnknownReferences(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	engine, err := NewEngine(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newAssignmentFixtures(t, db)
	role := createRoleWithPermissions(t, db, fx.landlord.ID, "viewer")

	_, err = engine.AssignRoles(ctx, "missing-user", fx.tenant.ID, []string{role.ID})
	require.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	_, err = engine.AssignRoles(ctx, fx.user.ID, "missing-tenant", []string{role.ID})
	require.ErrorIs(t, err, apperrors.ErrResourceNotFound)

	_, err = engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{"missing-role"})
	require.ErrorIs(t, err, apperrors.ErrResourceNotFound)
}

func TestUnassignRolesKeepsPropagatedPermissions(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	engine, err := NewEngine(db)
	require.NoError(t, err)
	query, err := NewQuery(db)
	require.NoError(t, err)

	ctx := context.Background()
	fx := newAssignmentFixtures(t, db)
	perm := createPermission(t, db, fx.landlord.ID, "read", "invoice")
	role := createRoleWithPermissions(t, db, fx.landlord.ID, "viewer", perm)

	_, err = engine.AssignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{role.ID})
	require.NoError(t, err)

	result, err := engine.UnassignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{role.ID})
	require.NoError(t, err)
	require.Equal(t, []string{role.ID}, result.RemovedRoleIDs)

	again, err := engine.UnassignRoles(ctx, fx.user.ID, fx.tenant.ID, []string{role.ID})
	require.NoError(t, err)
	require.Empty(t, again.RemovedRoleIDs)
	require.Equal(t, []string{role.ID}, again.NotAssignedRoleIDs)

	// materialised grants survive the role removal
	ok, err := query.UserHasPermission(ctx, fx.user.ID, fx.tenant.ID, "read", "invoice")
	require.NoError(t, err)
	require.True(t, ok)
}
