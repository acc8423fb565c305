package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/carenethq/carenet-server/internal/middleware"
	"github.com/carenethq/carenet-server/internal/models"
	"github.com/carenethq/carenet-server/internal/services"
	"github.com/carenethq/carenet-server/pkg/errors"
	"github.com/carenethq/carenet-server/pkg/response"
)

// LockoutHandler exposes HTTP endpoints for account lockout administration.
type LockoutHandler struct {
	service *services.LockoutService
}

// NewLockoutHandler constructs a lockout handler.
func NewLockoutHandler(db *gorm.DB) (*LockoutHandler, error) {
	service, err := services.NewLockoutService(db)
	if err != nil {
		return nil, err
	}
	return &LockoutHandler{service: service}, nil
}

// Me returns the caller's active lockout, if any, so clients can render
// "why am I blocked" messaging.
func (h *LockoutHandler) Me(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	lockout, err := h.service.ActiveForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"locked": lockout != nil, "lockout": lockout})
}

// Get returns a lockout by id. Privileged.
func (h *LockoutHandler) Get(c *gin.Context) {
	lockout, err := h.service.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, lockout)
}

// ListForUser returns a user's lockout history. Privileged.
func (h *LockoutHandler) ListForUser(c *gin.Context) {
	items, err := h.service.ListForUser(requestContext(c), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

type createLockoutRequest struct {
	UserID         string   `json:"user_id" validate:"required"`
	Reason         string   `json:"reason" validate:"required,lockout_reason"`
	LockedFeatures []string `json:"locked_features" validate:"min=1,dive,feature_code"`
	ActiveFeatures []string `json:"active_features" validate:"omitempty,dive,feature_code"`
}

// Create opens a manual lockout against a user. Privileged.
func (h *LockoutHandler) Create(c *gin.Context) {
	var req createLockoutRequest
	if !bindAndValidate(c, &req) {
		return
	}

	lockout, err := h.service.Lock(requestContext(c), services.LockInput{
		UserID:         req.UserID,
		Reason:         models.LockoutReason(strings.ToUpper(strings.TrimSpace(req.Reason))),
		LockedFeatures: normalizeFeatureCodes(req.LockedFeatures),
		ActiveFeatures: normalizeFeatureCodes(req.ActiveFeatures),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, lockout)
}

// Unlock resolves a lockout. Privileged.
func (h *LockoutHandler) Unlock(c *gin.Context) {
	adminID := c.GetString(middleware.CtxUserIDKey)

	lockout, err := h.service.Unlock(requestContext(c), c.Param("id"), adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, lockout)
}

type grantGraceRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Days   int    `json:"days" validate:"gt=0"`
}

// GrantGrace extends a locked-out user's unpaid invoices and lifts the lockout. Privileged.
func (h *LockoutHandler) GrantGrace(c *gin.Context) {
	adminID := c.GetString(middleware.CtxUserIDKey)

	var req grantGraceRequest
	if !bindAndValidate(c, &req) {
		return
	}

	lockout, err := h.service.GrantGrace(requestContext(c), req.UserID, req.Days, adminID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, lockout)
}
