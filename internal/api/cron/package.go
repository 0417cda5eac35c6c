package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/packlane/packlane/internal/logger"
	"github.com/packlane/packlane/internal/service"
)

// PackageHandler hosts the scheduler entry points. The process runs no
// scheduler of its own; an external cron hits these endpoints.
type PackageHandler struct {
	lifecycle service.LifecycleService
	logger    *logger.Logger
}

func NewPackageHandler(lifecycle service.LifecycleService, logger *logger.Logger) *PackageHandler {
	return &PackageHandler{lifecycle: lifecycle, logger: logger}
}

// @Summary Expire overdue packages
// @Tags Cron
// @Produce json
// @Success 200 {object} dto.ExpireOverdueResponse
// @Router /cron/packages/expire [post]
func (h *PackageHandler) ExpireOverdue(c *gin.Context) {
	resp, err := h.lifecycle.ExpireOverdue(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
