package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-service/models"
)

// WishlistRepository defines data access for per-user wishlists.
type WishlistRepository interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error)
	Items(ctx context.Context, wishlistID uuid.UUID) ([]models.WishlistItem, error)
	AddItem(ctx context.Context, wishlistID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, wishlistID, productID uuid.UUID) error
	MoveToOrder(ctx context.Context, wishlistID, orderID uuid.UUID) (moved, skipped int, err error)
}

// GormWishlistRepository implements WishlistRepository using GORM.
type GormWishlistRepository struct {
	db *gorm.DB
}

func NewGormWishlistRepository(db *gorm.DB) WishlistRepository {
	return &GormWishlistRepository{db: db}
}

// GetOrCreate returns the user's wishlist, creating it on first use.
func (r *GormWishlistRepository) GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error) {
	var wishlist models.Wishlist
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		candidate := models.Wishlist{UserID: userID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&candidate).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&wishlist).Error
	})
	if err != nil {
		return nil, err
	}
	return &wishlist, nil
}

func (r *GormWishlistRepository) Items(ctx context.Context, wishlistID uuid.UUID) ([]models.WishlistItem, error) {
	var items []models.WishlistItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("wishlist_id = ?", wishlistID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// AddItem is a no-op when the product is already saved.
func (r *GormWishlistRepository) AddItem(ctx context.Context, wishlistID, productID uuid.UUID) error {
	item := models.WishlistItem{WishlistID: wishlistID, ProductID: productID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&item).Error
}

// RemoveItem is a no-op when the product is not saved.
func (r *GormWishlistRepository) RemoveItem(ctx context.Context, wishlistID, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("wishlist_id = ? AND product_id = ?", wishlistID, productID).
		Delete(&models.WishlistItem{}).Error
}

// MoveToOrder merges every saved product that is still available into the
// order, one unit each, and removes those from the wishlist, in one
// transaction. Unavailable products stay saved. It returns how many products
// were moved and how many were skipped.
func (r *GormWishlistRepository) MoveToOrder(ctx context.Context, wishlistID, orderID uuid.UUID) (moved, skipped int, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.WishlistItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("wishlist_id = ?", wishlistID).
			Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		saved := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			saved = append(saved, item.ProductID)
		}
		var available []uuid.UUID
		if err := tx.Model(&models.Product{}).
			Where("id IN ? AND available = ?", saved, true).
			Pluck("id", &available).Error; err != nil {
			return err
		}
		skipped = len(items) - len(available)
		if len(available) == 0 {
			return nil
		}

		if err := lockOpenOrder(tx, orderID); err != nil {
			return err
		}
		for _, productID := range available {
			if err := upsertLine(tx, orderID, productID, 1); err != nil {
				return err
			}
		}
		if err := tx.Where("wishlist_id = ? AND product_id IN ?", wishlistID, available).
			Delete(&models.WishlistItem{}).Error; err != nil {
			return err
		}
		moved = len(available)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return moved, skipped, nil
}
