package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is unique per (user, product); resubmitting overwrites it.
type Review struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_user_product" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_user_product;index" json:"product_id"`
	Rating    int       `gorm:"not null;check:rating BETWEEN 1 AND 5" json:"rating"`
	Comment   string    `gorm:"type:text" json:"comment"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type SubmitReviewRequest struct {
	Rating  int    `json:"rating" form:"rating"`
	Comment string `json:"comment" form:"comment" binding:"max=2000"`
}

// ProductDetail is a product with its review summary.
type ProductDetail struct {
	Product       *Product `json:"product"`
	Reviews       []Review `json:"reviews"`
	ReviewCount   int      `json:"review_count"`
	AverageRating float64  `json:"average_rating"`
}
