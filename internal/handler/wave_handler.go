package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/service"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
	"github.com/vokatra/cfp-admin-api/pkg/response"
)

// WaveHandler handles wave endpoints.
type WaveHandler struct {
	service *service.WaveService
}

// NewWaveHandler constructs a wave handler.
func NewWaveHandler(svc *service.WaveService) *WaveHandler {
	return &WaveHandler{service: svc}
}

// List godoc
// @Summary List waves
// @Tags Waves
// @Produce json
// @Param level_id query string false "Filter by level"
// @Param teacher_id query string false "Filter by teacher"
// @Param room_id query string false "Filter by room"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /waves [get]
func (h *WaveHandler) List(c *gin.Context) {
	var filter models.WaveFilter
	filter.LevelID = c.Query("level_id")
	filter.TeacherID = c.Query("teacher_id")
	filter.RoomID = c.Query("room_id")
	filter.Status = models.WaveStatus(c.Query("status"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	waves, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, waves, pagination)
}

// Get godoc
// @Summary Get wave by id
// @Description Returns the wave with its schedule and enrolled count
// @Tags Waves
// @Produce json
// @Param id path string true "Wave ID"
// @Success 200 {object} response.Envelope
// @Router /waves/{id} [get]
func (h *WaveHandler) Get(c *gin.Context) {
	wave, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wave, nil)
}

// Availability godoc
// @Summary Check resource availability
// @Description Reports whether a room or teacher is free at a weekly slot
// @Tags Waves
// @Produce json
// @Param kind query string true "Resource kind: room or teacher"
// @Param resource_id query string true "Resource ID"
// @Param day_id query string true "Day ID"
// @Param time_slot_id query string true "Time slot ID"
// @Param exclude_wave_id query string false "Wave to exclude from the check"
// @Success 200 {object} response.Envelope
// @Router /waves/availability [get]
func (h *WaveHandler) Availability(c *gin.Context) {
	available, err := h.service.IsAvailable(c.Request.Context(),
		models.ResourceKind(c.Query("kind")),
		c.Query("resource_id"),
		c.Query("day_id"),
		c.Query("time_slot_id"),
		c.Query("exclude_wave_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"available": available}, nil)
}

// Create godoc
// @Summary Create wave
// @Tags Waves
// @Accept json
// @Produce json
// @Param payload body service.CreateWaveRequest true "Wave payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /waves [post]
func (h *WaveHandler) Create(c *gin.Context) {
	var req service.CreateWaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	wave, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, wave)
}

// Update godoc
// @Summary Update wave
// @Tags Waves
// @Accept json
// @Produce json
// @Param id path string true "Wave ID"
// @Param payload body models.WavePatch true "Wave patch"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /waves/{id} [put]
func (h *WaveHandler) Update(c *gin.Context) {
	var patch models.WavePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	wave, err := h.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wave, nil)
}

// UpdateStatus godoc
// @Summary Update wave status
// @Description Moves a wave through its lifecycle
// @Tags Waves
// @Accept json
// @Produce json
// @Param id path string true "Wave ID"
// @Param payload body object true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /waves/{id}/status [patch]
func (h *WaveHandler) UpdateStatus(c *gin.Context) {
	var payload struct {
		Status models.WaveStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "status required"))
		return
	}
	wave, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), payload.Status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, wave, nil)
}
