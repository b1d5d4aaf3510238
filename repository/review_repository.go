package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-service/models"
)

// ReviewRepository defines data access for product reviews.
type ReviewRepository interface {
	Upsert(ctx context.Context, review *models.Review) error
	FindByProductID(ctx context.Context, productID uuid.UUID) ([]models.Review, error)
	AverageRating(ctx context.Context, productID uuid.UUID) (float64, error)
}

// GormReviewRepository implements ReviewRepository using GORM.
type GormReviewRepository struct {
	db *gorm.DB
}

func NewGormReviewRepository(db *gorm.DB) ReviewRepository {
	return &GormReviewRepository{db: db}
}

// Upsert writes the review, overwriting rating and comment when the user has
// already reviewed the product.
func (r *GormReviewRepository) Upsert(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
	}).Create(review).Error
}

// FindByProductID returns a product's reviews, newest first.
func (r *GormReviewRepository) FindByProductID(ctx context.Context, productID uuid.UUID) ([]models.Review, error) {
	var reviews []models.Review
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("updated_at DESC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}
	return reviews, nil
}

// AverageRating is the mean rating, 0 when the product has no reviews.
func (r *GormReviewRepository) AverageRating(ctx context.Context, productID uuid.UUID) (float64, error) {
	var avg float64
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0)").
		Where("product_id = ?", productID).
		Scan(&avg).Error
	if err != nil {
		return 0, err
	}
	return avg, nil
}
