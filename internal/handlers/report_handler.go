package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apierrors "github.com/rcabrera/citewatch/internal/errors"
	"github.com/rcabrera/citewatch/internal/services"
	"github.com/rcabrera/citewatch/internal/temporal"
)

// ReportHandler handles the aggregation report HTTP requests.
type ReportHandler struct {
	service services.ReportService
	tz      *temporal.Normalizer
}

// NewReportHandler creates a new ReportHandler instance.
func NewReportHandler(service services.ReportService, tz *temporal.Normalizer) *ReportHandler {
	return &ReportHandler{
		service: service,
		tz:      tz,
	}
}

// DailyRequest is the query surface of GET /api/v1/reports/daily. An absent
// date means today in the engine's fixed zone.
type DailyRequest struct {
	Date string `form:"date" binding:"omitempty,datetime=2006-01-02"`
}

// MonthlyRequest is the query surface of GET /api/v1/reports/monthly. Absent
// fields default to the current month.
type MonthlyRequest struct {
	Year  int `form:"year" binding:"omitempty,gte=2000,lte=2100"`
	Month int `form:"month" binding:"omitempty,gte=1,lte=12"`
}

// RepeatOffendersRequest is the query surface of
// GET /api/v1/reports/repeat-offenders. An absent threshold falls back to the
// configured one.
type RepeatOffendersRequest struct {
	MinViolations int `form:"minViolations" binding:"omitempty,gte=1"`
}

// Dashboard handles GET /api/v1/reports/dashboard.
func (h *ReportHandler) Dashboard(c *gin.Context) {
	snapshot, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build dashboard", err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// Daily handles GET /api/v1/reports/daily.
func (h *ReportHandler) Daily(c *gin.Context) {
	var req DailyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	date := time.Now().In(h.tz.Location())
	if req.Date != "" {
		date, _ = time.ParseInLocation("2006-01-02", req.Date, h.tz.Location())
	}

	summary, err := h.service.Daily(c.Request.Context(), date)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build daily summary", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Monthly handles GET /api/v1/reports/monthly.
func (h *ReportHandler) Monthly(c *gin.Context) {
	var req MonthlyRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	now := time.Now().In(h.tz.Location())
	year, month := req.Year, time.Month(req.Month)
	if year == 0 {
		year = now.Year()
	}
	if req.Month == 0 {
		month = now.Month()
	}

	report, err := h.service.Monthly(c.Request.Context(), year, month)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build monthly report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Enforcers handles GET /api/v1/reports/enforcers.
func (h *ReportHandler) Enforcers(c *gin.Context) {
	report, err := h.service.EnforcerPerformance(c.Request.Context())
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build enforcer report", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"enforcers": report,
		"count":     len(report),
	})
}

// RepeatOffenders handles GET /api/v1/reports/repeat-offenders.
func (h *ReportHandler) RepeatOffenders(c *gin.Context) {
	var req RepeatOffendersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			apierrors.ValidationError(c, validationErrors)
			return
		}
		apierrors.BadRequest(c, "Invalid query parameters", nil)
		return
	}

	report, err := h.service.RepeatOffenders(c.Request.Context(), req.MinViolations)
	if err != nil {
		apierrors.InternalServerError(c, "Failed to build repeat offender report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}
