package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/authz"
	"github.com/leasehold/leasehold/pkg/response"
)

// AssignmentHandler exposes role assignment and authorization checks.
type AssignmentHandler struct {
	engine   *authz.Engine
	query    *authz.Query
	resolver *authz.Resolver
}

func NewAssignmentHandler(db *gorm.DB) (*AssignmentHandler, error) {
	engine, err := authz.NewEngine(db)
	if err != nil {
		return nil, err
	}
	query, err := authz.NewQuery(db)
	if err != nil {
		return nil, err
	}
	resolver, err := authz.NewResolver(db, nil)
	if err != nil {
		return nil, err
	}
	return &AssignmentHandler{engine: engine, query: query, resolver: resolver}, nil
}

type assignRolesRequest struct {
	UserID  string   `json:"user_id" validate:"required"`
	RoleIDs []string `json:"role_ids" validate:"required,min=1"`
}

type checkPermissionRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	TenantID string `json:"tenant_id" validate:"required"`
	Action   string `json:"action" validate:"required"`
	Resource string `json:"resource" validate:"required"`
}

type checkRoleRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	TenantID string `json:"tenant_id" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

// POST /api/tenants/:tenantId/assignments
func (h *AssignmentHandler) AssignRoles(c *gin.Context) {
	var body assignRolesRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.engine.AssignRoles(requestContext(c),
		strings.TrimSpace(body.UserID), c.Param("tenantId"), body.RoleIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// DELETE /api/tenants/:tenantId/assignments
func (h *AssignmentHandler) UnassignRoles(c *gin.Context) {
	var body assignRolesRequest
	if !bindAndValidate(c, &body) {
		return
	}

	result, err := h.engine.UnassignRoles(requestContext(c),
		strings.TrimSpace(body.UserID), c.Param("tenantId"), body.RoleIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// POST /api/authorize/permission
func (h *AssignmentHandler) CheckPermission(c *gin.Context) {
	var body checkPermissionRequest
	if !bindAndValidate(c, &body) {
		return
	}

	allowed, err := h.query.UserHasPermission(requestContext(c),
		body.UserID, body.TenantID, body.Action, body.Resource)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowed": allowed})
}

// POST /api/authorize/role
func (h *AssignmentHandler) CheckRole(c *gin.Context) {
	var body checkRoleRequest
	if !bindAndValidate(c, &body) {
		return
	}

	held, err := h.query.UserHasRole(requestContext(c), body.UserID, body.TenantID, body.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"held": held})
}

type evaluateGrantRequest struct {
	Context map[string]any `json:"context"`
}

// POST /api/roles/:id/permissions/:permissionId/evaluate
//
// Resolves the grant's governing policy and applies its effect against the
// supplied attribute context.
func (h *AssignmentHandler) EvaluateGrant(c *gin.Context) {
	var body evaluateGrantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	allowed, err := h.resolver.EvaluateGrant(requestContext(c),
		c.Param("id"), c.Param("permissionId"), body.Context)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"allowed": allowed})
}

// GET /api/users/:id/tenants/:tenantId/permissions
func (h *AssignmentHandler) ListUserPermissions(c *gin.Context) {
	displays, err := h.query.ListUserPermissionDisplays(requestContext(c), c.Param("id"), c.Param("tenantId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"permissions": displays})
}
