package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/services"
	"github.com/leasehold/leasehold/pkg/response"
)

type TenantHandler struct {
	svc *services.TenantService
}

func NewTenantHandler(db *gorm.DB) (*TenantHandler, error) {
	svc, err := services.NewTenantService(db)
	if err != nil {
		return nil, err
	}
	return &TenantHandler{svc: svc}, nil
}

type createTenantRequest struct {
	LandlordID  string         `json:"landlord_id" validate:"required"`
	Name        string         `json:"name" validate:"required,min=2,max=128"`
	Description string         `json:"description" validate:"omitempty,max=512"`
	Domain      string         `json:"domain" validate:"omitempty,max=255"`
	Config      map[string]any `json:"config"`
}

type updateTenantRequest struct {
	Name        *string        `json:"name" validate:"omitempty,min=2,max=128"`
	Description *string        `json:"description" validate:"omitempty,max=512"`
	Domain      *string        `json:"domain" validate:"omitempty,max=255"`
	Config      map[string]any `json:"config"`
}

// GET /api/tenants?landlord_id=...&page=...&per_page=...
func (h *TenantHandler) List(c *gin.Context) {
	page := parsePage(c)
	tenants, total, err := h.svc.ListPaged(requestContext(c), c.Query("landlord_id"), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, tenants, pageMeta(page, total))
}

// GET /api/tenants/:id
func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tenant)
}

// POST /api/tenants
func (h *TenantHandler) Create(c *gin.Context) {
	var body createTenantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	tenant, err := h.svc.Create(requestContext(c), services.CreateTenantInput{
		LandlordID:  strings.TrimSpace(body.LandlordID),
		Name:        strings.TrimSpace(body.Name),
		Description: strings.TrimSpace(body.Description),
		Domain:      strings.TrimSpace(body.Domain),
		Config:      body.Config,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, tenant)
}

// PATCH /api/tenants/:id
func (h *TenantHandler) Update(c *gin.Context) {
	var body updateTenantRequest
	if !bindAndValidate(c, &body) {
		return
	}

	tenant, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdateTenantInput{
		Name:        body.Name,
		Description: body.Description,
		Domain:      body.Domain,
		Config:      body.Config,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tenant)
}

// DELETE /api/tenants/:id
func (h *TenantHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
