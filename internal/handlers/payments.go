package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/carenethq/carenet-server/internal/app"
	"github.com/carenethq/carenet-server/internal/middleware"
	"github.com/carenethq/carenet-server/internal/models"
	"github.com/carenethq/carenet-server/internal/services"
	"github.com/carenethq/carenet-server/pkg/errors"
	"github.com/carenethq/carenet-server/pkg/response"
)

// PaymentHandler exposes HTTP endpoints for payments and the escrow ledger.
type PaymentHandler struct {
	payments *services.PaymentService
	escrow   *services.EscrowService
}

// NewPaymentHandler constructs a payment handler with its service graph.
func NewPaymentHandler(db *gorm.DB, billing app.BillingConfig) (*PaymentHandler, error) {
	escrow, err := services.NewEscrowService(db, billing)
	if err != nil {
		return nil, err
	}
	invoices, err := services.NewInvoiceService(db, billing)
	if err != nil {
		return nil, err
	}
	payments, err := services.NewPaymentService(db, escrow, invoices)
	if err != nil {
		return nil, err
	}
	return &PaymentHandler{payments: payments, escrow: escrow}, nil
}

type createPaymentRequest struct {
	JobID  string          `json:"job_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Method string          `json:"method"`
}

// Create records a payment intent and holds the funds in escrow.
func (h *PaymentHandler) Create(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req createPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	payment, err := h.payments.CreatePayment(requestContext(c), userID, services.CreatePaymentInput{
		JobID:  req.JobID,
		Amount: req.Amount,
		Method: req.Method,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, payment)
}

type processPaymentRequest struct {
	TransactionID   string `json:"transaction_id"`
	GatewayResponse string `json:"gateway_response"`
	InvoiceID       string `json:"invoice_id"`
}

// Process applies a confirmed-payment gateway callback. Privileged.
func (h *PaymentHandler) Process(c *gin.Context) {
	var req processPaymentRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errors.NewBadRequest(err.Error()))
			return
		}
	}

	payment, err := h.payments.ProcessPayment(requestContext(c), services.ProcessPaymentInput{
		PaymentID:       c.Param("id"),
		TransactionID:   req.TransactionID,
		GatewayResponse: req.GatewayResponse,
		InvoiceID:       req.InvoiceID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, payment)
}

type refundPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
	Reason string          `json:"reason"`
}

// Refund refunds a completed payment. Privileged.
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	payment, err := h.payments.RefundPayment(requestContext(c), c.Param("id"), services.RefundPaymentInput{
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, payment)
}

// ReleaseEscrow releases the escrow held for a payment. Privileged.
func (h *PaymentHandler) ReleaseEscrow(c *gin.Context) {
	escrow, err := h.escrow.Release(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, escrow)
}

// GetEscrow returns the escrow attached to a payment.
func (h *PaymentHandler) GetEscrow(c *gin.Context) {
	escrow, err := h.escrow.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, escrow)
}

// Get returns a single payment, restricted to its payer unless the caller is an admin.
func (h *PaymentHandler) Get(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	privileged := c.GetString(middleware.CtxRoleKey) == models.RoleAdmin

	payment, err := h.payments.Get(requestContext(c), c.Param("id"), userID, privileged)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, payment)
}

// List returns the caller's payments with pagination metadata.
func (h *PaymentHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	page, limit := paginationParams(c)

	items, total, err := h.payments.ListForUser(requestContext(c), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	totalPages := int(total) / limit
	if int(total)%limit != 0 {
		totalPages++
	}
	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{
		Page:       page,
		PerPage:    limit,
		Total:      int(total),
		TotalPages: totalPages,
	})
}
