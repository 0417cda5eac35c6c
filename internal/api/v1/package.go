package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/packlane/packlane/internal/api/dto"
	ierr "github.com/packlane/packlane/internal/errors"
	"github.com/packlane/packlane/internal/service"
	"github.com/packlane/packlane/internal/types"
)

type PackageHandler struct {
	sale      service.SaleService
	credit    service.CreditService
	payment   service.PaymentService
	lifecycle service.LifecycleService
}

func NewPackageHandler(
	sale service.SaleService,
	credit service.CreditService,
	payment service.PaymentService,
	lifecycle service.LifecycleService,
) *PackageHandler {
	return &PackageHandler{
		sale:      sale,
		credit:    credit,
		payment:   payment,
		lifecycle: lifecycle,
	}
}

// @Summary Sell a package
// @Tags Packages
// @Accept json
// @Produce json
// @Param request body dto.SellPackageRequest true "Sale"
// @Success 201 {object} dto.PackageResponse
// @Router /packages [post]
func (h *PackageHandler) Sell(c *gin.Context) {
	var req dto.SellPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.sale.SellPackage(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary Get a package
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} dto.PackageResponse
// @Router /packages/{id} [get]
func (h *PackageHandler) Get(c *gin.Context) {
	resp, err := h.lifecycle.GetPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary List packages
// @Tags Packages
// @Produce json
// @Success 200 {object} dto.ListPackagesResponse
// @Router /packages [get]
func (h *PackageHandler) List(c *gin.Context) {
	var filter types.PackageFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.lifecycle.ListPackages(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Record a payment against a package
// @Tags Packages
// @Accept json
// @Produce json
// @Param id path string true "Package ID"
// @Param request body dto.RecordPaymentRequest true "Payment"
// @Success 201 {object} dto.PaymentResponse
// @Router /packages/{id}/payments [post]
func (h *PackageHandler) RecordPayment(c *gin.Context) {
	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.payment.RecordPayment(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary List payments of a package
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} dto.ListPaymentsResponse
// @Router /packages/{id}/payments [get]
func (h *PackageHandler) ListPayments(c *gin.Context) {
	resp, err := h.payment.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Register a usage against a package
// @Tags Packages
// @Accept json
// @Produce json
// @Param id path string true "Package ID"
// @Param request body dto.RecordUsageRequest true "Usage"
// @Success 201 {object} dto.UsageResponse
// @Router /packages/{id}/usages [post]
func (h *PackageHandler) RegisterUsage(c *gin.Context) {
	var req dto.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.credit.RegisterUsage(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// @Summary List usages of a package
// @Tags Packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} dto.ListUsagesResponse
// @Router /packages/{id}/usages [get]
func (h *PackageHandler) ListUsages(c *gin.Context) {
	var filter types.UsageFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}
	filter.PackageID = lo.ToPtr(c.Param("id"))

	resp, err := h.credit.ListUsages(c.Request.Context(), &filter)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a usage
// @Tags Usages
// @Accept json
// @Produce json
// @Param id path string true "Usage ID"
// @Param request body dto.CancelUsageRequest true "Cancellation"
// @Success 200 {object} dto.UsageResponse
// @Router /usages/{id}/cancel [post]
func (h *PackageHandler) CancelUsage(c *gin.Context) {
	var req dto.CancelUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.credit.CancelUsage(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Cancel a package
// @Tags Packages
// @Accept json
// @Produce json
// @Param id path string true "Package ID"
// @Param request body dto.CancelPackageRequest true "Cancellation"
// @Success 200 {object} dto.PackageResponse
// @Router /packages/{id}/cancel [post]
func (h *PackageHandler) Cancel(c *gin.Context) {
	var req dto.CancelPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.lifecycle.CancelPackage(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary Transfer a package to another client
// @Tags Packages
// @Accept json
// @Produce json
// @Param id path string true "Package ID"
// @Param request body dto.TransferPackageRequest true "Transfer"
// @Success 200 {object} dto.PackageResponse
// @Router /packages/{id}/transfer [post]
func (h *PackageHandler) Transfer(c *gin.Context) {
	var req dto.TransferPackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request payload").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.lifecycle.TransferPackage(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
