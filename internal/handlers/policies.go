package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/models"
	"github.com/leasehold/leasehold/internal/services"
	"github.com/leasehold/leasehold/pkg/response"
)

type PolicyHandler struct {
	svc *services.PolicyService
}

func NewPolicyHandler(db *gorm.DB) (*PolicyHandler, error) {
	svc, err := services.NewPolicyService(db)
	if err != nil {
		return nil, err
	}
	return &PolicyHandler{svc: svc}, nil
}

type createPolicyRequest struct {
	TenantID    string         `json:"tenant_id" validate:"required"`
	Code        string         `json:"code" validate:"required,min=2,max=64"`
	Name        string         `json:"name" validate:"required,min=2,max=128"`
	Description string         `json:"description" validate:"omitempty,max=512"`
	Effect      string         `json:"effect" validate:"omitempty,oneof=ALLOW DENY"`
	Actions     []string       `json:"actions"`
	Resources   []string       `json:"resources"`
	Conditions  map[string]any `json:"conditions"`
}

type updatePolicyRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=2,max=128"`
	Description *string        `json:"description" validate:"omitempty,max=512"`
	Effect      *string        `json:"effect" validate:"omitempty,oneof=ALLOW DENY"`
	Actions     []string       `json:"actions"`
	Resources   []string       `json:"resources"`
	Conditions  map[string]any `json:"conditions"`
}

// GET /api/policies?tenant_id=...
func (h *PolicyHandler) List(c *gin.Context) {
	policies, err := h.svc.List(requestContext(c), c.Query("tenant_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, policies)
}

// GET /api/policies/:id
func (h *PolicyHandler) Get(c *gin.Context) {
	policy, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, policy)
}

// POST /api/policies
func (h *PolicyHandler) Create(c *gin.Context) {
	var body createPolicyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	policy, err := h.svc.Create(requestContext(c), services.CreatePolicyInput{
		TenantID:    strings.TrimSpace(body.TenantID),
		Code:        strings.TrimSpace(body.Code),
		Name:        strings.TrimSpace(body.Name),
		Description: strings.TrimSpace(body.Description),
		Effect:      models.PolicyEffect(body.Effect),
		Actions:     body.Actions,
		Resources:   body.Resources,
		Conditions:  body.Conditions,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, policy)
}

// PATCH /api/policies/:id
func (h *PolicyHandler) Update(c *gin.Context) {
	var body updatePolicyRequest
	if !bindAndValidate(c, &body) {
		return
	}

	var effect *models.PolicyEffect
	if body.Effect != nil {
		e := models.PolicyEffect(*body.Effect)
		effect = &e
	}

	policy, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdatePolicyInput{
		Name:        body.Name,
		Description: body.Description,
		Effect:      effect,
		Actions:     body.Actions,
		Resources:   body.Resources,
		Conditions:  body.Conditions,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, policy)
}

// DELETE /api/policies/:id
func (h *PolicyHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
