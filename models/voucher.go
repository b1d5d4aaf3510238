package models

import (
	"time"

	"github.com/google/uuid"
)

// Voucher is a time-bounded percentage discount code.
type Voucher struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code      string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	ValidFrom time.Time `gorm:"not null" json:"valid_from"`
	ValidTo   time.Time `gorm:"not null" json:"valid_to"`
	Discount  int       `gorm:"not null;check:discount BETWEEN 0 AND 100" json:"discount"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ValidAt reports whether the voucher can be redeemed at t.
func (v *Voucher) ValidAt(t time.Time) bool {
	return v.Active && !t.Before(v.ValidFrom) && !t.After(v.ValidTo)
}

type CreateVoucherRequest struct {
	Code      string    `json:"code" binding:"required,min=3,max=50,vouchercode"`
	ValidFrom time.Time `json:"valid_from" binding:"required"`
	ValidTo   time.Time `json:"valid_to" binding:"required"`
	Discount  int       `json:"discount" binding:"gte=0,lte=100"`
}

type ApplyVoucherRequest struct {
	Code string `json:"code" form:"code" binding:"required"`
}
