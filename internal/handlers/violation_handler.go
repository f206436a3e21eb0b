package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/rcabrera/citewatch/internal/errors"
	"github.com/rcabrera/citewatch/internal/middleware"
	"github.com/rcabrera/citewatch/internal/models"
	"github.com/rcabrera/citewatch/internal/services"
)

// ViolationHandler handles ticket lifecycle and listing HTTP requests.
type ViolationHandler struct {
	service services.ViolationService
}

// NewViolationHandler creates a new ViolationHandler instance.
func NewViolationHandler(service services.ViolationService) *ViolationHandler {
	return &ViolationHandler{
		service: service,
	}
}

// CreateViolationRequest is the body of POST /api/v1/violations.
type CreateViolationRequest struct {
	EnforcerID  *string `json:"enforcerId" binding:"omitempty,uuid"`
	Name        string  `json:"name" binding:"required"`
	License     string  `json:"license"`
	Phone       string  `json:"phone"`
	Address     string  `json:"address"`
	Plate       string  `json:"plate"`
	Model       string  `json:"model"`
	Color       string  `json:"color"`
	Type        string  `json:"type" binding:"required"`
	Description string  `json:"description"`
	Location    string  `json:"location"`
	FineAmount  float64 `json:"fineAmount" binding:"required,gte=0"`
	CapturedAt  string  `json:"capturedAt"`
}

// ListViolationsRequest is the query surface of GET /api/v1/violations. Dates
// are calendar days; repeatOffender is tri-state (absent means no filter).
type ListViolationsRequest struct {
	Status     string `form:"status" binding:"omitempty,oneof=pending issued paid disputed cancelled"`
	Type       string `form:"type"`
	EnforcerID string `form:"enforcerId" binding:"omitempty,uuid"`
	Plate      string `form:"plate"`
	License    string `form:"license"`

	Search         string `form:"search"`
	DateFrom       string `form:"dateFrom" binding:"omitempty,datetime=2006-01-02"`
	DateTo         string `form:"dateTo" binding:"omitempty,datetime=2006-01-02"`
	RepeatOffender *bool  `form:"repeatOffender"`

	SortBy   string `form:"sortBy" binding:"omitempty,oneof=createdAt fineAmount name violationNumber dueDate"`
	SortDir  string `form:"sortDir" binding:"omitempty,oneof=asc desc"`
	Page     int    `form:"page" binding:"omitempty,gte=1"`
	PageSize int    `form:"pageSize"`
}

// UpdateStatusRequest is the body of PATCH /api/v1/violations/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=pending issued paid disputed cancelled"`
}

// Create handles POST /api/v1/violations.
func (h *ViolationHandler) Create(c *gin.Context) {
	var req CreateViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	if log := middleware.GetLogger(c); log != nil {
		log.Info("Creating violation", map[string]interface{}{
			"type":  req.Type,
			"plate": req.Plate,
		})
	}

	created, err := h.service.Create(c.Request.Context(), services.CreateViolationInput{
		EnforcerID:  req.EnforcerID,
		Name:        req.Name,
		License:     req.License,
		Phone:       req.Phone,
		Address:     req.Address,
		Plate:       req.Plate,
		Model:       req.Model,
		Color:       req.Color,
		Type:        req.Type,
		Description: req.Description,
		Location:    req.Location,
		FineAmount:  req.FineAmount,
		CapturedAt:  req.CapturedAt,
	})
	if err != nil {
		apierrors.InternalServerError(c, "Failed to create violation", err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// Get handles GET /api/v1/violations/:id.
func (h *ViolationHandler) Get(c *gin.Context) {
	id := c.Param("id")

	violation, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrViolationNotFound) {
			apierrors.NotFound(c, "Violation not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to fetch violation", err)
		return
	}

	c.JSON(http.StatusOK, violation)
}

// List handles GET /api/v1/violations.
func (h *ViolationHandler) List(c *gin.Context) {
	var req ListViolationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	input := services.ListViolationsInput{
		Status:         req.Status,
		Type:           req.Type,
		EnforcerID:     req.EnforcerID,
		Plate:          req.Plate,
		License:        req.License,
		Search:         req.Search,
		RepeatOffender: req.RepeatOffender,
		SortKey:        req.SortBy,
		Page:           req.Page,
		PageSize:       req.PageSize,
	}

	if req.DateFrom != "" {
		from, _ := time.Parse("2006-01-02", req.DateFrom)
		input.DateFrom = &from
	}
	if req.DateTo != "" {
		to, _ := time.Parse("2006-01-02", req.DateTo)
		input.DateTo = &to
	}
	if req.SortDir != "" {
		desc := req.SortDir == "desc"
		input.SortDesc = &desc
	}

	page, err := h.service.List(c.Request.Context(), input)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to list violations", err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// UpdateStatus handles PATCH /api/v1/violations/:id/status.
func (h *ViolationHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid request body", nil)
		return
	}

	updated, err := h.service.UpdateStatus(c.Request.Context(), id, models.Status(req.Status))
	if err != nil {
		if errors.Is(err, services.ErrViolationNotFound) {
			apierrors.NotFound(c, "Violation not found")
			return
		}
		if errors.Is(err, services.ErrInvalidStatus) {
			apierrors.BadRequest(c, err.Error(), nil)
			return
		}
		apierrors.InternalServerError(c, "Failed to update violation status", err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// Delete handles DELETE /api/v1/violations/:id.
func (h *ViolationHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, services.ErrViolationNotFound) {
			apierrors.NotFound(c, "Violation not found")
			return
		}
		apierrors.InternalServerError(c, "Failed to delete violation", err)
		return
	}

	c.Status(http.StatusNoContent)
}
