package database

import (
	"fmt"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
)

// AutoMigrate creates or updates the database schema for all models. Entity
// tables are migrated before the pivot facts so foreign keys resolve.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Landlord{},
		&models.Tenant{},
		&models.User{},
		&models.Role{},
		&models.Policy{},
		&models.Permission{},
		&models.RolePermissionPolicy{},
		&models.UserTenantRole{},
		&models.UserTenantPermission{},
	)
}

// SeedData provisions the bootstrap landlord, its administrative permissions
// and an admin role carrying all of them, so a fresh installation has an
// ownership root to hang tenants off. Seed steps are independent; failures
// are collected rather than aborting the remaining steps.
func SeedData(db *gorm.DB) error {
	var errs error

	var system models.Landlord
	if err := db.Where(models.Landlord{Name: "System"}).FirstOrCreate(&system).Error; err != nil {
		return fmt.Errorf("seed system landlord: %w", err)
	}

	seedPermissions := []models.Permission{
		{Action: "view", Resource: "landlord", LandlordID: system.ID},
		{Action: "manage", Resource: "landlord", LandlordID: system.ID},
		{Action: "view", Resource: "tenant", LandlordID: system.ID},
		{Action: "manage", Resource: "tenant", LandlordID: system.ID},
		{Action: "view", Resource: "role", LandlordID: system.ID},
		{Action: "manage", Resource: "role", LandlordID: system.ID},
	}
	created := make([]models.Permission, 0, len(seedPermissions))
	for _, perm := range seedPermissions {
		var row models.Permission
		err := db.Where(models.Permission{
			Action:     perm.Action,
			Resource:   perm.Resource,
			LandlordID: perm.LandlordID,
		}).Attrs(perm).FirstOrCreate(&row).Error
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("seed permission %s: %w", perm.Display(), err))
			continue
		}
		created = append(created, row)
	}

	admin := models.Role{
		Code:       "admin",
		Name:       "Administrator",
		LandlordID: system.ID,
	}
	var adminRow models.Role
	if err := db.Where(models.Role{Code: admin.Code, LandlordID: admin.LandlordID}).
		Attrs(admin).FirstOrCreate(&adminRow).Error; err != nil {
		errs = multierr.Append(errs, fmt.Errorf("seed admin role: %w", err))
		return errs
	}

	for _, perm := range created {
		grant := models.RolePermissionPolicy{RoleID: adminRow.ID, PermissionID: perm.ID}
		err := db.Where(models.RolePermissionPolicy{RoleID: grant.RoleID, PermissionID: grant.PermissionID}).
			Attrs(grant).FirstOrCreate(&models.RolePermissionPolicy{}).Error
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("seed admin grant %s: %w", perm.Display(), err))
		}
	}

	return errs
}
