package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "storefront-service/common/errors"
	"storefront-service/services"
)

type WishlistController struct {
	wishlist services.WishlistService
}

func NewWishlistController(wishlist services.WishlistService) *WishlistController {
	return &WishlistController{wishlist: wishlist}
}

// GetWishlist handles GET /wishlist.
func (wc *WishlistController) GetWishlist(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := wc.wishlist.Items(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Add handles POST /wishlist/:id.
func (wc *WishlistController) Add(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := wc.wishlist.Add(c.Request.Context(), userID, productID); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Added to wishlist"})
}

// Remove handles DELETE /wishlist/:id.
func (wc *WishlistController) Remove(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	if err := wc.wishlist.Remove(c.Request.Context(), userID, productID); err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Removed from wishlist"})
}

// MoveToCart handles POST /wishlist/move-to-cart.
func (wc *WishlistController) MoveToCart(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	res, err := wc.wishlist.MoveToCart(c.Request.Context(), userID)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	message := "Wishlist moved to cart"
	switch {
	case res.Empty:
		message = "Your wishlist is empty"
	case res.Skipped > 0:
		message = "Some saved products are no longer available and stayed on your wishlist"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "moved": res.Moved, "skipped": res.Skipped, "empty": res.Empty})
}
