package handlers

import (
	"net/http"
	"strings"
	"time"

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

// InvoiceHandler exposes HTTP endpoints for invoicing and settlement.
type InvoiceHandler struct {
	service *services.InvoiceService
}

// NewInvoiceHandler constructs an invoice handler.
func NewInvoiceHandler(db *gorm.DB, billing app.BillingConfig) (*InvoiceHandler, error) {
	service, err := services.NewInvoiceService(db, billing)
	if err != nil {
		return nil, err
	}
	return &InvoiceHandler{service: service}, nil
}

type createInvoiceRequest struct {
	JobID       string          `json:"job_id"`
	Type        string          `json:"type" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	RecipientID string          `json:"recipient_id"`
	DueDate     *time.Time      `json:"due_date"`
}

// Create persists a single invoice. Privileged.
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req createInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invoice, err := h.service.Create(requestContext(c), services.CreateInvoiceInput{
		JobID:       req.JobID,
		Type:        models.InvoiceType(strings.ToUpper(strings.TrimSpace(req.Type))),
		Amount:      req.Amount,
		RecipientID: req.RecipientID,
		DueDate:     req.DueDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, invoice)
}

// Generate computes and persists the full invoice set for a completed job. Privileged.
func (h *InvoiceHandler) Generate(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("jobId"))

	invoices, err := h.service.GenerateJobInvoices(requestContext(c), jobID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, invoices)
}

type subscriptionInvoiceRequest struct {
	UserID string          `json:"user_id" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

// CreateSubscription bills a subscription charge to a user. Privileged.
func (h *InvoiceHandler) CreateSubscription(c *gin.Context) {
	var req subscriptionInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invoice, err := h.service.CreateSubscriptionInvoice(requestContext(c), req.UserID, req.Amount)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, invoice)
}

type payInvoiceRequest struct {
	TransactionID string `json:"transaction_id" validate:"required"`
}

// Pay settles an invoice with a confirmed transaction reference.
func (h *InvoiceHandler) Pay(c *gin.Context) {
	var req payInvoiceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invoice, err := h.service.Pay(requestContext(c), c.Param("id"), req.TransactionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invoice)
}

// List returns the caller's invoices with pagination metadata.
func (h *InvoiceHandler) List(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	page, limit := paginationParams(c)

	items, total, err := h.service.List(requestContext(c), services.ListInvoicesInput{
		UserID: userID,
		Page:   page,
		Limit:  limit,
	})
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

// Get returns a single invoice.
func (h *InvoiceHandler) Get(c *gin.Context) {
	invoice, err := h.service.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, invoice)
}

// ListOverdue returns invoices currently marked overdue. Privileged.
func (h *InvoiceHandler) ListOverdue(c *gin.Context) {
	items, err := h.service.ListOverdue(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}
