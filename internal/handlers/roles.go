package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/services"
	"github.com/leasehold/leasehold/pkg/response"
)

type RoleHandler struct {
	svc *services.RoleService
}

func NewRoleHandler(db *gorm.DB) (*RoleHandler, error) {
	svc, err := services.NewRoleService(db)
	if err != nil {
		return nil, err
	}
	return &RoleHandler{svc: svc}, nil
}

type createRoleRequest struct {
	LandlordID  string  `json:"landlord_id" validate:"required"`
	TenantID    *string `json:"tenant_id"`
	Code        string  `json:"code" validate:"required,min=2,max=64"`
	Name        string  `json:"name" validate:"required,min=2,max=128"`
	Description string  `json:"description" validate:"omitempty,max=512"`
}

type updateRoleRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=128"`
	Description *string `json:"description" validate:"omitempty,max=512"`
}

type attachPermissionRequest struct {
	PermissionID         string  `json:"permission_id" validate:"required"`
	PolicyID             *string `json:"policy_id"`
	InheritDefaultPolicy bool    `json:"inherit_default_policy"`
}

// GET /api/roles?landlord_id=...
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.svc.List(requestContext(c), c.Query("landlord_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, roles)
}

// GET /api/roles/:id
func (h *RoleHandler) Get(c *gin.Context) {
	role, err := h.svc.GetWithPermissions(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// POST /api/roles
func (h *RoleHandler) Create(c *gin.Context) {
	var body createRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.Create(requestContext(c), services.CreateRoleInput{
		LandlordID:  strings.TrimSpace(body.LandlordID),
		TenantID:    body.TenantID,
		Code:        strings.TrimSpace(body.Code),
		Name:        strings.TrimSpace(body.Name),
		Description: strings.TrimSpace(body.Description),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, role)
}

// PATCH /api/roles/:id
func (h *RoleHandler) Update(c *gin.Context) {
	var body updateRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	role, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdateRoleInput{
		Name:        body.Name,
		Description: body.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, role)
}

// DELETE /api/roles/:id
func (h *RoleHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/roles/:id/permissions
func (h *RoleHandler) ListGrants(c *gin.Context) {
	grants, err := h.svc.ListGrants(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grants)
}

// POST /api/roles/:id/permissions
func (h *RoleHandler) AttachPermission(c *gin.Context) {
	var body attachPermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	grant, err := h.svc.AttachPermission(requestContext(c),
		c.Param("id"), strings.TrimSpace(body.PermissionID), body.PolicyID, body.InheritDefaultPolicy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, grant)
}

// DELETE /api/roles/:id/permissions/:permissionId
func (h *RoleHandler) DetachPermission(c *gin.Context) {
	removed, err := h.svc.DetachPermission(requestContext(c), c.Param("id"), c.Param("permissionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}
