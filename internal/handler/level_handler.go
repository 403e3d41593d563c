package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/service"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
	"github.com/vokatra/cfp-admin-api/pkg/response"
)

// LevelHandler handles level endpoints.
type LevelHandler struct {
	service *service.LevelService
}

// NewLevelHandler constructs a level handler.
func NewLevelHandler(svc *service.LevelService) *LevelHandler {
	return &LevelHandler{service: svc}
}

// List godoc
// @Summary List levels
// @Tags Levels
// @Produce json
// @Param search query string false "Search by code or name"
// @Param active query bool false "Filter by active flag"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /levels [get]
func (h *LevelHandler) List(c *gin.Context) {
	var filter models.LevelFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	levels, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, levels, pagination)
}

// Get godoc
// @Summary Get level by id
// @Tags Levels
// @Produce json
// @Param id path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Router /levels/{id} [get]
func (h *LevelHandler) Get(c *gin.Context) {
	level, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, level, nil)
}

// FeeSchedule godoc
// @Summary Resolve the fee schedule of a level
// @Description Returns the fee components used to seed a billing ledger
// @Tags Levels
// @Produce json
// @Param id path string true "Level ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /levels/{id}/fee-schedule [get]
func (h *LevelHandler) FeeSchedule(c *gin.Context) {
	fees, err := h.service.ResolveFeeSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"registration_fee":    fees.RegistrationFee,
		"tuition_fee":         fees.TuitionFee,
		"book_fee":            fees.BookFee,
		"required_book_count": fees.RequiredBookCount,
		"duration_months":     fees.DurationMonths,
		"total_due":           fees.TotalDue(),
	}, nil)
}

// Create godoc
// @Summary Create level
// @Tags Levels
// @Accept json
// @Produce json
// @Param payload body service.CreateLevelRequest true "Level payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /levels [post]
func (h *LevelHandler) Create(c *gin.Context) {
	var req service.CreateLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	level, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, level)
}

// Update godoc
// @Summary Update level
// @Tags Levels
// @Accept json
// @Produce json
// @Param id path string true "Level ID"
// @Param payload body models.LevelPatch true "Level patch"
// @Success 200 {object} response.Envelope
// @Router /levels/{id} [put]
func (h *LevelHandler) Update(c *gin.Context) {
	var patch models.LevelPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	level, err := h.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, level, nil)
}

// Delete godoc
// @Summary Delete level
// @Description Fails when waves still reference the level
// @Tags Levels
// @Produce json
// @Param id path string true "Level ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /levels/{id} [delete]
func (h *LevelHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
