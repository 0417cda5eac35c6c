package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/service"
	"github.com/packlane/packlane/internal/types"
)

type StatsHandler struct {
	balance service.BalanceService
}

func NewStatsHandler(balance service.BalanceService) *StatsHandler {
	return &StatsHandler{balance: balance}
}

// @Summary Tenant statistics for a period
// @Tags Stats
// @Produce json
// @Param start query string true "Period start (RFC3339)"
// @Param end query string true "Period end (RFC3339)"
// @Success 200 {object} dto.TenantStatsResponse
// @Router /stats [get]
func (h *StatsHandler) GetStats(c *gin.Context) {
	var period types.StatsPeriod
	if err := c.ShouldBindQuery(&period); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Provide start and end as RFC3339 timestamps").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.balance.GetTenantStats(c.Request.Context(), period)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
