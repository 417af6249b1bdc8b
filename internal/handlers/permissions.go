package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/services"
	"github.com/leasehold/leasehold/pkg/response"
)

type PermissionHandler struct {
	svc *services.PermissionService
}

func NewPermissionHandler(db *gorm.DB) (*PermissionHandler, error) {
	svc, err := services.NewPermissionService(db)
	if err != nil {
		return nil, err
	}
	return &PermissionHandler{svc: svc}, nil
}

type createPermissionRequest struct {
	LandlordID      string  `json:"landlord_id" validate:"required"`
	Action          string  `json:"action" validate:"required,min=1,max=64"`
	Resource        string  `json:"resource" validate:"required,min=1,max=64"`
	DefaultPolicyID *string `json:"default_policy_id"`
}

type setDefaultPolicyRequest struct {
	PolicyID *string `json:"policy_id"`
}

// GET /api/permissions?landlord_id=...
func (h *PermissionHandler) List(c *gin.Context) {
	permissions, err := h.svc.List(requestContext(c), c.Query("landlord_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, permissions)
}

// GET /api/permissions/:id
func (h *PermissionHandler) Get(c *gin.Context) {
	permission, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, permission)
}

// POST /api/permissions
func (h *PermissionHandler) Create(c *gin.Context) {
	var body createPermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	permission, err := h.svc.Create(requestContext(c), services.CreatePermissionInput{
		LandlordID:      strings.TrimSpace(body.LandlordID),
		Action:          strings.TrimSpace(body.Action),
		Resource:        strings.TrimSpace(body.Resource),
		DefaultPolicyID: body.DefaultPolicyID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, permission)
}

// PUT /api/permissions/:id/default-policy
func (h *PermissionHandler) SetDefaultPolicy(c *gin.Context) {
	var body setDefaultPolicyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	permission, err := h.svc.SetDefaultPolicy(requestContext(c), c.Param("id"), body.PolicyID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, permission)
}

// DELETE /api/permissions/:id
func (h *PermissionHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
