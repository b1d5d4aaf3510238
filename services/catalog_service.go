package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	awspkg "storefront-service/pkg/aws"
	"storefront-service/repository"
)

const (
	DefaultPerPage = 12
	MaxPerPage     = 100
)

// CatalogService serves categories and products.
type CatalogService interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ProductDetail(ctx context.Context, id uuid.UUID) (*models.ProductDetail, error)
	ListCategories(ctx context.Context) ([]models.Category, error)

	CreateCategory(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error)
	CreateProduct(ctx context.Context, req *models.ProductRequest) (*models.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *models.ProductRequest) (*models.Product, error)
}

type catalogServiceImpl struct {
	products   repository.ProductRepository
	categories repository.CategoryRepository
	reviews    repository.ReviewRepository
	cache      *CatalogCache
	metrics    *awspkg.MetricsClient
	logger     *zap.Logger
}

func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	reviews repository.ReviewRepository,
	cache *CatalogCache,
	metrics *awspkg.MetricsClient,
	logger *zap.Logger,
) CatalogService {
	return &catalogServiceImpl{
		products:   products,
		categories: categories,
		reviews:    reviews,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
	}
}

// NormalizeFilter clamps paging to sane bounds.
func NormalizeFilter(filter models.ProductFilter) models.ProductFilter {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = DefaultPerPage
	}
	if filter.PerPage > MaxPerPage {
		filter.PerPage = MaxPerPage
	}
	filter.Query = strings.TrimSpace(filter.Query)
	filter.CategorySlug = strings.TrimSpace(filter.CategorySlug)
	return filter
}

func (s *catalogServiceImpl) ListProducts(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	filter = NormalizeFilter(filter)

	if page, ok := s.cache.GetProductList(ctx, filter); ok {
		s.record(awspkg.MetricCacheHits)
		return page, nil
	}
	s.record(awspkg.MetricCacheMisses)

	products, total, err := s.products.FindAll(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	if products == nil {
		products = []models.Product{}
	}

	page := &models.ProductPage{
		Products: products,
		Meta:     models.NewPageMeta(filter.Page, filter.PerPage, total),
	}
	s.cache.SetProductListAsync(filter, page)
	return page, nil
}

// GetProduct returns an available product; hidden products are not found.
func (s *catalogServiceImpl) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if p, ok := s.cache.GetProduct(ctx, id); ok {
		s.record(awspkg.MetricCacheHits)
		return p, nil
	}
	s.record(awspkg.MetricCacheMisses)

	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Product not found"))
	}
	if !p.Available {
		return nil, apperrors.ErrNotFound.With("Product not found")
	}
	s.cache.SetProductAsync(p)
	return p, nil
}

func (s *catalogServiceImpl) ProductDetail(ctx context.Context, id uuid.UUID) (*models.ProductDetail, error) {
	p, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	reviews, err := s.reviews.FindByProductID(ctx, id)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	avg, err := s.reviews.AverageRating(ctx, id)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}

	return &models.ProductDetail{
		Product:       p,
		Reviews:       reviews,
		ReviewCount:   len(reviews),
		AverageRating: avg,
	}, nil
}

func (s *catalogServiceImpl) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.categories.FindAll(ctx)
	if err != nil {
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	return categories, nil
}

func (s *catalogServiceImpl) CreateCategory(ctx context.Context, req *models.CreateCategoryRequest) (*models.Category, error) {
	category := &models.Category{
		Name: strings.TrimSpace(req.Name),
		Slug: strings.ToLower(strings.TrimSpace(req.Slug)),
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrConflict.With("Category slug already exists")
		}
		s.logger.Error("Failed to create category", zap.Error(err))
		return nil, apperrors.ErrInternal.Wrap(err)
	}
	s.logger.Info("Category created", zap.String("slug", category.Slug))
	return category, nil
}

func (s *catalogServiceImpl) CreateProduct(ctx context.Context, req *models.ProductRequest) (*models.Product, error) {
	if err := validateProductRequest(req); err != nil {
		return nil, err
	}

	product := &models.Product{Available: true}
	applyProductRequest(product, req)

	if err := s.products.Create(ctx, product); err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrConflict.With("Product slug already exists")
		}
		s.logger.Error("Failed to create product", zap.Error(err))
		return nil, apperrors.ErrInternal.Wrap(err)
	}

	s.invalidate(ctx, product.ID)
	s.logger.Info("Product created", zap.String("product_id", product.ID.String()), zap.String("slug", product.Slug))
	return product, nil
}

func (s *catalogServiceImpl) UpdateProduct(ctx context.Context, id uuid.UUID, req *models.ProductRequest) (*models.Product, error) {
	if err := validateProductRequest(req); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, translate(err, apperrors.ErrNotFound.With("Product not found"))
	}
	applyProductRequest(product, req)
	product.Category = nil

	if err := s.products.Update(ctx, product); err != nil {
		if isDuplicate(err) {
			return nil, apperrors.ErrConflict.With("Product slug already exists")
		}
		s.logger.Error("Failed to update product", zap.Error(err), zap.String("product_id", id.String()))
		return nil, apperrors.ErrInternal.Wrap(err)
	}

	s.invalidate(ctx, id)
	return product, nil
}

func validateProductRequest(req *models.ProductRequest) error {
	if req.Price.LessThan(decimal.Zero) {
		return apperrors.ErrValidation.With("Price must not be negative")
	}
	if !req.Price.Equal(req.Price.Round(2)) {
		return apperrors.ErrValidation.With("Price has at most two decimals")
	}
	if req.Stock < 0 {
		return apperrors.ErrValidation.With("Stock must not be negative")
	}
	if req.CategoryID == uuid.Nil {
		return apperrors.ErrValidation.With("Category is required")
	}
	return nil
}

func applyProductRequest(p *models.Product, req *models.ProductRequest) {
	p.CategoryID = req.CategoryID
	p.Name = strings.TrimSpace(req.Name)
	p.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	p.Description = req.Description
	p.Price = req.Price
	p.Stock = req.Stock
	if req.Available != nil {
		p.Available = *req.Available
	}
}

func (s *catalogServiceImpl) invalidate(ctx context.Context, id uuid.UUID) {
	s.cache.InvalidateProduct(ctx, id)
}

func (s *catalogServiceImpl) record(metric string) {
	recordAsync(s.metrics, metric, map[string]string{"Cache": "catalog"})
}

// recordAsync emits a count metric off the request path.
func recordAsync(metrics *awspkg.MetricsClient, name string, dimensions map[string]string) {
	if metrics == nil || !metrics.IsEnabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.RecordCount(ctx, name, dimensions)
	}()
}
