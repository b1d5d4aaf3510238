package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"storefront-service/models"
)

// VoucherRepository defines data access for discount vouchers.
type VoucherRepository interface {
	Create(ctx context.Context, voucher *models.Voucher) error
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	Deactivate(ctx context.Context, code string) error
	FindAll(ctx context.Context, page, limit int) ([]models.Voucher, int64, error)
}

// GormVoucherRepository implements VoucherRepository using GORM.
type GormVoucherRepository struct {
	db *gorm.DB
}

// NewGormVoucherRepository creates a new GormVoucherRepository.
func NewGormVoucherRepository(db *gorm.DB) VoucherRepository {
	return &GormVoucherRepository{db: db}
}

func (r *GormVoucherRepository) Create(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

// FindByCode retrieves a voucher by code, case-insensitively. Validity is the
// caller's concern.
func (r *GormVoucherRepository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}

// Deactivate sets active = false; gorm.ErrRecordNotFound for unknown codes.
func (r *GormVoucherRepository) Deactivate(ctx context.Context, code string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("UPPER(code) = ?", strings.ToUpper(strings.TrimSpace(code))).
		Update("active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindAll retrieves paginated vouchers, newest first.
func (r *GormVoucherRepository) FindAll(ctx context.Context, page, limit int) ([]models.Voucher, int64, error) {
	var vouchers []models.Voucher
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Voucher{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&vouchers).Error; err != nil {
		return nil, 0, err
	}

	return vouchers, total, nil
}
