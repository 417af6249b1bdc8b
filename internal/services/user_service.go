package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
	"github.com/leasehold/leasehold/internal/store"
	"github.com/leasehold/leasehold/pkg/crypto"
	apperrors "github.com/leasehold/leasehold/pkg/errors"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUserExists signals a username or email collision.
	ErrUserExists = apperrors.New("CONFLICT", "Username or email already in use", http.StatusConflict)
)

// CreateUserInput captures new account details.
type CreateUserInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

// UpdateUserInput describes mutable account fields.
type UpdateUserInput struct {
	Email       *string
	DisplayName *string
	IsActive    *bool
}

// UserService manages accounts and their direct permission grants.
type UserService struct {
	db           *gorm.DB
	associations *store.AssociationStore
}

// NewUserService constructs a UserService using the provided database handle.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	associations, err := store.NewAssociationStore(db)
	if err != nil {
		return nil, err
	}
	return &UserService{db: db, associations: associations}, nil
}

// Create registers a new account with a bcrypt-hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" || email == "" {
		return nil, apperrors.NewValidation("username and email are required")
	}
	if len(input.Password) < 8 {
		return nil, apperrors.NewValidation("password must be at least 8 characters")
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username:    username,
		Email:       email,
		Password:    hash,
		DisplayName: strings.TrimSpace(input.DisplayName),
		IsActive:    true,
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: create user: %w", err)
	}

	return user, nil
}

// GetByID loads a user by identifier.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// GetByUsername loads a user by username.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", strings.TrimSpace(username)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// List returns all users ordered by creation time.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	ctx = ensureContext(ctx)

	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: list users: %w", err)
	}
	return users, nil
}

// Update modifies account metadata.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Email != nil {
		if email := strings.ToLower(strings.TrimSpace(*input.Email)); email != "" && email != user.Email {
			updates["email"] = email
		}
	}
	if input.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*input.DisplayName)
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: update user: %w", err)
	}

	return s.GetByID(ctx, id)
}

// VerifyCredentials checks the supplied password against the stored hash.
func (s *UserService) VerifyCredentials(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, apperrors.ErrForbidden
	}
	if !crypto.VerifyPassword(user.Password, password) {
		return nil, apperrors.ErrUnauthorized
	}
	return user, nil
}

// Delete removes a user and every grant fact referencing them.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	user, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.UserTenantRole{}).Error; err != nil {
			return fmt.Errorf("delete role assignments: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserTenantPermission{}).Error; err != nil {
			return fmt.Errorf("delete permission grants: %w", err)
		}
		if err := tx.Delete(user).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("user service: cascade delete: %w", err)
	}
	return nil
}

// GrantPermission records a direct (user, tenant, permission) grant without
// going through a role. The permission must belong to the tenant's landlord.
func (s *UserService) GrantPermission(ctx context.Context, userID, tenantID, permissionID string) error {
	ctx = ensureContext(ctx)

	userID = strings.TrimSpace(userID)
	tenantID = strings.TrimSpace(tenantID)
	permissionID = strings.TrimSpace(permissionID)
	if userID == "" || tenantID == "" || permissionID == "" {
		return apperrors.NewValidation("user id, tenant id, and permission id are required")
	}

	if _, err := s.GetByID(ctx, userID); err != nil {
		return err
	}

	var tenant models.Tenant
	err := s.db.WithContext(ctx).First(&tenant, "id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTenantNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load tenant: %w", err)
	}

	var permission models.Permission
	err = s.db.WithContext(ctx).First(&permission, "id = ?", permissionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPermissionNotFound
	}
	if err != nil {
		return fmt.Errorf("user service: load permission: %w", err)
	}

	if permission.LandlordID != tenant.LandlordID {
		return apperrors.NewIntegrity("permission belongs to a different landlord than the tenant")
	}

	return s.associations.AddUserTenantPermission(ctx, userID, tenantID, permissionID)
}

// RevokePermission removes a direct grant. A missing grant is not an error;
// the boolean reports whether anything was removed.
func (s *UserService) RevokePermission(ctx context.Context, userID, tenantID, permissionID string) (bool, error) {
	ctx = ensureContext(ctx)
	return s.associations.RemoveUserTenantPermission(ctx,
		strings.TrimSpace(userID), strings.TrimSpace(tenantID), strings.TrimSpace(permissionID))
}
