package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/repository"
)

// ReviewService handles purchase-gated product reviews.
type ReviewService interface {
	Submit(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*models.Review, error)
	AverageRating(ctx context.Context, productID uuid.UUID) (float64, error)
	ForProduct(ctx context.Context, productID uuid.UUID) ([]models.Review, error)
}

type reviewServiceImpl struct {
	reviews  repository.ReviewRepository
	orders   repository.OrderRepository
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewReviewService(
	reviews repository.ReviewRepository,
	orders repository.OrderRepository,
	products repository.ProductRepository,
	logger *zap.Logger,
) ReviewService {
	return &reviewServiceImpl{
		reviews:  reviews,
		orders:   orders,
		products: products,
		logger:   logger,
	}
}

// Submit creates or overwrites the user's review of a product. The user must
// have at least one paid order containing it.
func (s *reviewServiceImpl) Submit(ctx context.Context, userID, productID uuid.UUID, rating int, comment string) (*models.Review, error) {
	if _, err := s.products.FindByID(ctx, productID); err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Product not found"))
	}

	bought, err := s.orders.HasPaidItem(ctx, userID, productID)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	if !bought {
		return nil, apperrors.ErrNotEligible
	}

	if rating < 1 || rating > 5 {
		return nil, apperrors.ErrInvalidRating
	}

	review := &models.Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Comment:   strings.TrimSpace(comment),
	}
	if err := s.reviews.Upsert(ctx, review); err != nil {
		s.logger.Error("Failed to save review", zap.Error(err), zap.String("product_id", productID.String()))
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	return review, nil
}

// AverageRating is 0 for a product without reviews.
func (s *reviewServiceImpl) AverageRating(ctx context.Context, productID uuid.UUID) (float64, error) {
	avg, err := s.reviews.AverageRating(ctx, productID)
	if err != nil {
		return 0, apperrors.ErrInternal.Wrap(err)
	}
	return avg, nil
}

func (s *reviewServiceImpl) ForProduct(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	reviews, err := s.reviews.FindByProductID(ctx, productID)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	return reviews, nil
}
