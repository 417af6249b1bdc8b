package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/leasehold/leasehold/internal/services"
	"github.com/leasehold/leasehold/pkg/response"
)

type LandlordHandler struct {
	svc *services.LandlordService
}

func NewLandlordHandler(db *gorm.DB) (*LandlordHandler, error) {
	svc, err := services.NewLandlordService(db)
	if err != nil {
		return nil, err
	}
	return &LandlordHandler{svc: svc}, nil
}

type createLandlordRequest struct {
	Name   string         `json:"name" validate:"required,min=2,max=128"`
	Config map[string]any `json:"config"`
}

type updateLandlordRequest struct {
	Name   *string        `json:"name" validate:"omitempty,min=2,max=128"`
	Config map[string]any `json:"config"`
}

// GET /api/landlords?page=...&per_page=...
func (h *LandlordHandler) List(c *gin.Context) {
	page := parsePage(c)
	landlords, total, err := h.svc.ListPaged(requestContext(c), page)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, landlords, pageMeta(page, total))
}

// GET /api/landlords/:id
func (h *LandlordHandler) Get(c *gin.Context) {
	landlord, err := h.svc.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, landlord)
}

// POST /api/landlords
func (h *LandlordHandler) Create(c *gin.Context) {
	var body createLandlordRequest
	if !bindAndValidate(c, &body) {
		return
	}

	landlord, err := h.svc.Create(requestContext(c), services.CreateLandlordInput{
		Name:   strings.TrimSpace(body.Name),
		Config: body.Config,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, landlord)
}

// PATCH /api/landlords/:id
func (h *LandlordHandler) Update(c *gin.Context) {
	var body updateLandlordRequest
	if !bindAndValidate(c, &body) {
		return
	}

	landlord, err := h.svc.Update(requestContext(c), c.Param("id"), services.UpdateLandlordInput{
		Name:   body.Name,
		Config: body.Config,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, landlord)
}

// DELETE /api/landlords/:id
func (h *LandlordHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
