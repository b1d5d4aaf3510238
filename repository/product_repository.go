package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"storefront-service/models"
)

// ProductRepository defines data access for the catalog's products.
type ProductRepository interface {
	FindAll(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
}

// GormProductRepository implements ProductRepository using GORM.
type GormProductRepository struct {
	db *gorm.DB
}

func NewGormProductRepository(db *gorm.DB) ProductRepository {
	return &GormProductRepository{db: db}
}

// FindAll returns one page of available products matching filter. The
// keyword matches product name, description or category name
// case-insensitively.
func (r *GormProductRepository) FindAll(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error) {
	var products []models.Product
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("products.available = ?", true)

	q := strings.TrimSpace(filter.Query)
	if q != "" || filter.CategorySlug != "" {
		query = query.Joins("LEFT JOIN categories ON categories.id = products.category_id")
	}
	if q != "" {
		like := "%" + escapeLike(q) + "%"
		query = query.Where("products.name ILIKE ? OR products.description ILIKE ? OR categories.name ILIKE ?", like, like, like)
	}
	if filter.CategorySlug != "" {
		query = query.Where("categories.slug = ?", filter.CategorySlug)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.PerPage
	if err := query.
		Preload("Category").
		Order("products.name ASC").
		Offset(offset).
		Limit(filter.PerPage).
		Find(&products).Error; err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Preload("Category").First(&p, "products.id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProductRepository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Create(product).Error
}

func (r *GormProductRepository) Update(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Omit("Category").Save(product).Error
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
