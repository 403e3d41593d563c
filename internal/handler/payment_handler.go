package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vokatra/cfp-admin-api/internal/service"
	appErrors "github.com/vokatra/cfp-admin-api/pkg/errors"
	"github.com/vokatra/cfp-admin-api/pkg/response"
)

// PaymentHandler handles ledger and payment-journal endpoints.
type PaymentHandler struct {
	service *service.BillingService
	metrics *service.MetricsService
}

// NewPaymentHandler constructs a payment handler.
func NewPaymentHandler(svc *service.BillingService, metrics *service.MetricsService) *PaymentHandler {
	return &PaymentHandler{service: svc, metrics: metrics}
}

// GetLedger godoc
// @Summary Get a billing ledger
// @Description Returns the ledger with its journal and enrollment context
// @Tags Billing
// @Produce json
// @Param id path string true "Ledger ID"
// @Success 200 {object} response.Envelope
// @Router /ledgers/{id} [get]
func (h *PaymentHandler) GetLedger(c *gin.Context) {
	ledger, err := h.service.GetLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ledger, nil)
}

// ListPayments godoc
// @Summary List the payments of a ledger
// @Tags Billing
// @Produce json
// @Param id path string true "Ledger ID"
// @Success 200 {object} response.Envelope
// @Router /ledgers/{id}/payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	payments, err := h.service.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// ApplyPayment godoc
// @Summary Record a payment against a ledger
// @Description Appends a journal entry and updates the ledger atomically.
// @Description Payments above the remaining balance are rejected.
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Ledger ID"
// @Param payload body service.ApplyPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ledgers/{id}/payments [post]
func (h *PaymentHandler) ApplyPayment(c *gin.Context) {
	var req service.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.RecordedBy = recordedBy(c)

	payment, err := h.service.ApplyPayment(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordPayment(string(payment.Category))
	response.Created(c, payment)
}

// VoidPayment godoc
// @Summary Void a payment
// @Description Deletes the journal entry and compensates the ledger
// @Tags Billing
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id} [delete]
func (h *PaymentHandler) VoidPayment(c *gin.Context) {
	payment, err := h.service.VoidPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// Receipt godoc
// @Summary Generate a payment receipt
// @Description Renders the PDF receipt and returns an expiring download token
// @Tags Billing
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [post]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	link, err := h.service.GenerateReceipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadReceipt godoc
// @Summary Download a receipt by token
// @Tags Billing
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /receipts/download [get]
func (h *PaymentHandler) DownloadReceipt(c *gin.Context) {
	path, err := h.service.OpenReceipt(c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=receipt.pdf")
	c.File(path)
}

// ExportPayments godoc
// @Summary Export the journal of a ledger as CSV
// @Tags Billing
// @Produce text/csv
// @Param id path string true "Ledger ID"
// @Success 200 {file} file
// @Router /ledgers/{id}/payments/export [get]
func (h *PaymentHandler) ExportPayments(c *gin.Context) {
	data, filename, err := h.service.ExportPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", data)
}
