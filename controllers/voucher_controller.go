package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/services"
)

// VoucherController handles the admin voucher endpoints.
type VoucherController struct {
	vouchers services.VoucherService
}

func NewVoucherController(vouchers services.VoucherService) *VoucherController {
	return &VoucherController{vouchers: vouchers}
}

// CreateVoucher handles POST /admin/vouchers.
func (vc *VoucherController) CreateVoucher(c *gin.Context) {
	var req models.CreateVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	voucher, err := vc.vouchers.Create(c.Request.Context(), &req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"voucher": voucher})
}

// ListVouchers handles GET /admin/vouchers.
func (vc *VoucherController) ListVouchers(c *gin.Context) {
	page, limit := parsePaginationParams(c)
	vouchers, total, err := vc.vouchers.List(c.Request.Context(), page, limit)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vouchers": vouchers,
		"meta":     models.NewPageMeta(page, limit, total),
	})
}

// DeactivateVoucher handles DELETE /admin/vouchers/:code.
func (vc *VoucherController) DeactivateVoucher(c *gin.Context) {
	if err := vc.vouchers.Deactivate(c.Request.Context(), c.Param("code")); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Voucher deactivated"})
}
