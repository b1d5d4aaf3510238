package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/repository"
)

// WishlistService manages the per-user set of saved products.
type WishlistService interface {
	Items(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error)
	Add(ctx context.Context, userID, productID uuid.UUID) error
	Remove(ctx context.Context, userID, productID uuid.UUID) error
	MoveToCart(ctx context.Context, userID uuid.UUID) (*models.MoveResult, error)
}

type wishlistServiceImpl struct {
	wishlists repository.WishlistRepository
	products  repository.ProductRepository
	cart      CartService
	logger    *zap.Logger
}

func NewWishlistService(
	wishlists repository.WishlistRepository,
	products repository.ProductRepository,
	cart CartService,
	logger *zap.Logger,
) WishlistService {
	return &wishlistServiceImpl{
		wishlists: wishlists,
		products:  products,
		cart:      cart,
		logger:    logger,
	}
}

func (s *wishlistServiceImpl) wishlist(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error) {
	w, err := s.wishlists.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	return w, nil
}

func (s *wishlistServiceImpl) Items(ctx context.Context, userID uuid.UUID) ([]models.WishlistItem, error) {
	w, err := s.wishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	items, err := s.wishlists.Items(ctx, w.ID)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	if items == nil {
		items = []models.WishlistItem{}
	}
	return items, nil
}

// Add saves a product; saving it twice is not an error.
func (s *wishlistServiceImpl) Add(ctx context.Context, userID, productID uuid.UUID) error {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return translate(err, apperrors.ErrNotFound.With("Product not found"))
	}
	w, err := s.wishlist(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.wishlists.AddItem(ctx, w.ID, productID); err != nil {
		return apperrors.ErrInternal.Wrap(err)
	}
	return nil
}

// Remove drops a product; removing one that is not saved is not an error.
func (s *wishlistServiceImpl) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	w, err := s.wishlist(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.wishlists.RemoveItem(ctx, w.ID, productID); err != nil {
		return apperrors.ErrInternal.Wrap(err)
	}
	return nil
}

// MoveToCart merges every saved product that is still on sale into the open
// order, one unit each, and drops those from the wishlist. Unavailable
// products are skipped and stay saved. An empty wishlist is reported, not an
// error.
func (s *wishlistServiceImpl) MoveToCart(ctx context.Context, userID uuid.UUID) (*models.MoveResult, error) {
	w, err := s.wishlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	order, err := s.cart.GetOrCreateOpenOrder(ctx, userID)
	if err != nil {
		return nil, err
	}

	moved, skipped, err := s.wishlists.MoveToOrder(ctx, w.ID, order.ID)
	if err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Order not found"))
	}
	if moved == 0 && skipped == 0 {
		return &models.MoveResult{Empty: true}, nil
	}

	s.logger.Info("Wishlist moved to cart",
		zap.String("user_id", userID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Int("moved", moved),
		zap.Int("skipped", skipped),
	)
	return &models.MoveResult{Moved: moved, Skipped: skipped}, nil
}
