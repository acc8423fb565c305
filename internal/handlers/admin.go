package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carenethq/carenet-server/internal/app/sweep"
	"github.com/carenethq/carenet-server/pkg/response"
)

// AdminHandler exposes operational endpoints for platform staff.
type AdminHandler struct {
	sweeper *sweep.Sweeper
}

// NewAdminHandler constructs an admin handler.
func NewAdminHandler(sweeper *sweep.Sweeper) *AdminHandler {
	return &AdminHandler{sweeper: sweeper}
}

// RunSweep executes the overdue sweep immediately instead of waiting for the
// next scheduled run. The sweep is idempotent, so an extra run is harmless.
func (h *AdminHandler) RunSweep(c *gin.Context) {
	if err := h.sweeper.RunOnce(requestContext(c)); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"swept": true})
}
