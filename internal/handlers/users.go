package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/services"
	"github.com/leasehold/leasehold/pkg/response"
)

type UserHandler struct {
	svc *services.UserService
}

func NewUserHandler(db *gorm.DB) (*UserHandler, error) {
	svc, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	return &UserHandler{svc: svc}, nil
}

type createUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=64"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"omitempty,max=128"`
}

type updateUserRequest struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=128"`
	IsActive    *bool   `json:"is_active"`
}

type grantPermissionRequest struct {
	TenantID     string `json:"tenant_id" validate:"required"`
	PermissionID string `json:"permission_id" validate:"required"`
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.svc.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, users)
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.svc.Create(requestContext(c), services.CreateUserInput{
		Username:    strings.TrimSpace(body.Username),
		Email:       strings.TrimSpace(body.Email),
		Password:    body.Password,
		DisplayName: strings.TrimSpace(body.DisplayName),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// PATCH /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var body updateUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdateUserInput{
		Email:       body.Email,
		DisplayName: body.DisplayName,
		IsActive:    body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/users/:id/permissions
func (h *UserHandler) GrantPermission(c *gin.Context) {
	var body grantPermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	err := h.svc.GrantPermission(requestContext(c),
		c.Param("id"), strings.TrimSpace(body.TenantID), strings.TrimSpace(body.PermissionID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"granted": true})
}

// DELETE /api/users/:id/tenants/:tenantId/permissions/:permissionId
func (h *UserHandler) RevokePermission(c *gin.Context) {
	removed, err := h.svc.RevokePermission(requestContext(c),
		c.Param("id"), c.Param("tenantId"), c.Param("permissionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}
