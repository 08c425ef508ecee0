package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cedeva-recon/internal/service"
	"cedeva-recon/pkg/logger"
	"cedeva-recon/pkg/response"
)

type ReconciliationHandler struct {
	service service.ReconciliationService
}

func NewReconciliationHandler(service service.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{service: service}
}

type ManualReconcileRequest struct {
	TransactionID int `json:"transaction_id" binding:"required,gt=0"`
	BookingID     int `json:"booking_id" binding:"required,gt=0"`
}

// GetSuggestions godoc
// @Summary List reconciliation suggestions
// @Description Ranked candidate matches between open credit transactions and unpaid bookings
// @Tags reconciliation
// @Produce json
// @Param organisation_id query int true "Organisation ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/reconciliation/suggestions [get]
func (h *ReconciliationHandler) GetSuggestions(c *gin.Context) {
	organisationID, err := strconv.Atoi(c.Query("organisation_id"))
	if err != nil || organisationID <= 0 {
		response.BadRequest(c, "Invalid organisation_id", "organisation_id must be a positive integer")
		return
	}

	suggestions, err := h.service.GetSuggestions(organisationID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to compute suggestions")
		response.InternalError(c, "Failed to compute suggestions", err.Error())
		return
	}

	response.Success(c, http.StatusOK, "Suggestions computed successfully", suggestions)
}

// GetUnreconciled godoc
// @Summary List unreconciled credit transactions
// @Description Open credit transactions of an organisation awaiting reconciliation
// @Tags reconciliation
// @Produce json
// @Param organisation_id query int true "Organisation ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/reconciliation/unreconciled [get]
func (h *ReconciliationHandler) GetUnreconciled(c *gin.Context) {
	organisationID, err := strconv.Atoi(c.Query("organisation_id"))
	if err != nil || organisationID <= 0 {
		response.BadRequest(c, "Invalid organisation_id", "organisation_id must be a positive integer")
		return
	}

	transactions, err := h.service.GetUnreconciledTransactions(organisationID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to list unreconciled transactions")
		response.InternalError(c, "Failed to list unreconciled transactions", err.Error())
		return
	}

	response.Success(c, http.StatusOK, "Unreconciled transactions retrieved successfully", transactions)
}

// ManualReconcile godoc
// @Summary Manually reconcile a transaction with a booking
// @Description Link one bank transaction to one booking; failures are returned as displayable outcomes
// @Tags reconciliation
// @Accept json
// @Produce json
// @Param request body ManualReconcileRequest true "Reconciliation command"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 500 {object} response.Response
// @Router /api/v1/reconciliation/manual [post]
func (h *ReconciliationHandler) ManualReconcile(c *gin.Context) {
	var req ManualReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	result, err := h.service.ManualReconcile(req.TransactionID, req.BookingID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Manual reconciliation failed")
		response.InternalError(c, "Manual reconciliation failed", err.Error())
		return
	}

	if !result.Success {
		if result.Reason == service.ReasonAlreadyReconciled {
			response.Conflict(c, "Reconciliation rejected", result.Reason)
			return
		}
		response.BadRequest(c, "Reconciliation rejected", result.Reason)
		return
	}

	response.Success(c, http.StatusOK, "Transaction reconciled successfully", result)
}
