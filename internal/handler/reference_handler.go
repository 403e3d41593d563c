package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vokatra/cfp-admin-api/internal/service"
	"github.com/vokatra/cfp-admin-api/pkg/response"
)

// ReferenceHandler serves the reference tables feeding wave creation.
type ReferenceHandler struct {
	service *service.ReferenceService
}

// NewReferenceHandler constructs a reference handler.
func NewReferenceHandler(svc *service.ReferenceService) *ReferenceHandler {
	return &ReferenceHandler{service: svc}
}

// Rooms godoc
// @Summary List rooms
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference/rooms [get]
func (h *ReferenceHandler) Rooms(c *gin.Context) {
	rooms, err := h.service.ListRooms(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rooms, nil)
}

// Days godoc
// @Summary List weekdays
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference/days [get]
func (h *ReferenceHandler) Days(c *gin.Context) {
	days, err := h.service.ListDays(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// TimeSlots godoc
// @Summary List time slots
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference/time-slots [get]
func (h *ReferenceHandler) TimeSlots(c *gin.Context) {
	slots, err := h.service.ListTimeSlots(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Teachers godoc
// @Summary List teachers
// @Tags Reference
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reference/teachers [get]
func (h *ReferenceHandler) Teachers(c *gin.Context) {
	teachers, err := h.service.ListTeachers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, nil)
}
