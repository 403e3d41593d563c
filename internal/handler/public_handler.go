package handler

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/vokatra/cfp-admin-api/internal/models"
	"github.com/vokatra/cfp-admin-api/internal/service"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
	"github.com/vokatra/cfp-admin-api/pkg/response"
)

// Malagasy mobile numbers: +261 or 0 prefix, operator code, 7 digits.
var malagasyPhone = regexp.MustCompile(`^(\+261|0)(32|33|34|38|39)\d{7}$`)

// PublicHandler serves the unauthenticated self-enrollment surface.
// Submissions land as PENDING_REVIEW; a declared mobile-money payment
// may ride along and is verified by the secretariat during review.
type PublicHandler struct {
	enrollments *service.EnrollmentService
	waves       *service.WaveService
	enabled     bool
}

// NewPublicHandler constructs a public handler.
func NewPublicHandler(enrollments *service.EnrollmentService, waves *service.WaveService, enabled bool) *PublicHandler {
	return &PublicHandler{enrollments: enrollments, waves: waves, enabled: enabled}
}

// SelfEnrollRequest is the public enrollment submission payload.
type SelfEnrollRequest struct {
	WaveID         string             `json:"wave_id" binding:"required"`
	FullName       string             `json:"full_name" binding:"required"`
	Phone          string             `json:"phone" binding:"required"`
	Email          *string            `json:"email,omitempty"`
	Address        *string            `json:"address,omitempty"`
	InitialPayment *SelfEnrollPayment `json:"initial_payment,omitempty"`
}

// SelfEnrollPayment is an optional payment declared with a public
// submission. The mobile-money reference is mandatory here: with no
// cashier present, it is the only thing the secretariat can verify.
type SelfEnrollPayment struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Method    string          `json:"method" binding:"required"`
	Reference string          `json:"reference" binding:"required"`
}

// OpenWaves godoc
// @Summary List waves open for enrollment
// @Tags Public
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /public/waves [get]
func (h *PublicHandler) OpenWaves(c *gin.Context) {
	if !h.enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "self enrollment is disabled"))
		return
	}
	waves, pagination, err := h.waves.List(c.Request.Context(), models.WaveFilter{
		Status:   models.WaveStatusPlanned,
		PageSize: 100,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, waves, pagination)
}

// SelfEnroll godoc
// @Summary Submit a self-enrollment request
// @Description Creates a PENDING_REVIEW enrollment for secretariat approval, optionally with a declared mobile-money payment
// @Tags Public
// @Accept json
// @Produce json
// @Param payload body SelfEnrollRequest true "Self enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /public/enrollments [post]
func (h *PublicHandler) SelfEnroll(c *gin.Context) {
	if !h.enabled {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "self enrollment is disabled"))
		return
	}

	var req SelfEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if !malagasyPhone.MatchString(req.Phone) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid malagasy phone number"))
		return
	}

	enrollReq := service.EnrollRequest{
		WaveID: req.WaveID,
		Student: service.EnrollStudentInfo{
			FullName: req.FullName,
			Phone:    req.Phone,
			Email:    req.Email,
			Address:  req.Address,
		},
		InitialStatus: models.EnrollmentStatusPendingReview,
	}
	if req.InitialPayment != nil {
		reference := req.InitialPayment.Reference
		enrollReq.InitialPayment = &service.InitialPaymentRequest{
			Amount:    req.InitialPayment.Amount,
			Method:    req.InitialPayment.Method,
			Reference: &reference,
		}
	}

	res, err := h.enrollments.Enroll(c.Request.Context(), enrollReq)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}
