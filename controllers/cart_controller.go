package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/services"
)

// CartController exposes the open order and the order history.
type CartController struct {
	cart services.CartService
}

func NewCartController(cart services.CartService) *CartController {
	return &CartController{cart: cart}
}

// GetCart handles GET /cart.
func (cc *CartController) GetCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	view, err := cc.cart.Cart(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ApplyVoucher handles POST /cart with a voucher code.
func (cc *CartController) ApplyVoucher(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req models.ApplyVoucherRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	view, err := cc.cart.ApplyVoucher(c.Request.Context(), userID, req.Code)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveVoucher handles DELETE /cart/voucher.
func (cc *CartController) RemoveVoucher(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	if err := cc.cart.RemoveVoucher(c.Request.Context(), userID); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Voucher removed"})
}

// AddToCart handles POST /add-to-cart/:id. quantity may come from the query,
// a form or a JSON body and defaults to 1.
func (cc *CartController) AddToCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}

	quantity := 1
	if q := c.Query("quantity"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			apperrors.Respond(c, apperrors.ErrValidation.With("quantity must be a number"))
			return
		}
		quantity = n
	} else if c.Request.ContentLength > 0 {
		var req models.AddToCartRequest
		if err := c.ShouldBind(&req); err != nil {
			badRequest(c, err)
			return
		}
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
	}

	if err := cc.cart.AddItem(c.Request.Context(), userID, productID, quantity); err != nil {
		apperrors.Respond(c, err)
		return
	}
	cc.respondCart(c, userID)
}

// DecrementItem handles POST /decrement/:id.
func (cc *CartController) DecrementItem(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := cc.cart.DecrementItem(c.Request.Context(), userID, productID); err != nil {
		apperrors.Respond(c, err)
		return
	}
	cc.respondCart(c, userID)
}

// RemoveItem handles POST /remove-from-cart/:id.
func (cc *CartController) RemoveItem(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := cc.cart.RemoveItem(c.Request.Context(), userID, productID); err != nil {
		apperrors.Respond(c, err)
		return
	}
	cc.respondCart(c, userID)
}

// respondCart writes the cart as it stands after a mutation.
func (cc *CartController) respondCart(c *gin.Context, userID uuid.UUID) {
	view, err := cc.cart.Cart(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListOrders handles GET /orders.
func (cc *CartController) ListOrders(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, limit := parsePaginationParams(c)
	orders, err := cc.cart.Orders(c.Request.Context(), userID, page, limit)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// GetOrder handles GET /orders/:id.
func (cc *CartController) GetOrder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	view, err := cc.cart.Order(c.Request.Context(), userID, orderID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Reorder handles POST /orders/:id/reorder.
func (cc *CartController) Reorder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	orderID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	view, err := cc.cart.Reorder(c.Request.Context(), userID, orderID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
