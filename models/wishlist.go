package models

import (
	"time"

	"github.com/google/uuid"
)

// Wishlist is the per-user set of saved products.
type Wishlist struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	Items     []WishlistItem `gorm:"foreignKey:WishlistID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

type WishlistItem struct {
	WishlistID uuid.UUID `gorm:"type:uuid;primaryKey" json:"wishlist_id"`
	ProductID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"product_id"`
	Product    *Product  `gorm:"constraint:OnDelete:CASCADE" json:"product,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// MoveResult reports the outcome of moving a wishlist into the cart.
// Skipped counts saved products that are no longer on sale.
type MoveResult struct {
	Moved   int  `json:"moved"`
	Skipped int  `json:"skipped"`
	Empty   bool `json:"empty"`
}
