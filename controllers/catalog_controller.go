package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "storefront-service/common/errors"
	"storefront-service/models"
	"storefront-service/services"
)

// CatalogController serves the storefront listing, product pages and the
// admin catalog endpoints.
type CatalogController struct {
	catalog services.CatalogService
	reviews services.ReviewService
}

func NewCatalogController(catalog services.CatalogService, reviews services.ReviewService) *CatalogController {
	return &CatalogController{catalog: catalog, reviews: reviews}
}

// ListProducts handles GET / with q, category, page and per_page.
func (cc *CatalogController) ListProducts(c *gin.Context) {
	filter := models.ProductFilter{
		Query:        c.Query("q"),
		CategorySlug: c.Query("category"),
	}
	if p, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = p
	}
	if pp, err := strconv.Atoi(c.Query("per_page")); err == nil {
		filter.PerPage = pp
	}

	page, err := cc.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (cc *CatalogController) ListCategories(c *gin.Context) {
	categories, err := cc.catalog.ListCategories(c.Request.Context())
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetProduct handles GET /product/:id with reviews and average rating.
func (cc *CatalogController) GetProduct(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := cc.catalog.ProductDetail(c.Request.Context(), id)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// SubmitReview handles POST /product/:id.
func (cc *CatalogController) SubmitReview(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	productID, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req models.SubmitReviewRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}

	review, err := cc.reviews.Submit(c.Request.Context(), userID, productID, req.Rating, req.Comment)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"review": review})
}

// CreateCategory handles POST /admin/categories.
func (cc *CatalogController) CreateCategory(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	category, err := cc.catalog.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// CreateProduct handles POST /admin/products.
func (cc *CatalogController) CreateProduct(c *gin.Context) {
	var req models.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	product, err := cc.catalog.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": product})
}

// UpdateProduct handles PUT /admin/products/:id.
func (cc *CatalogController) UpdateProduct(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		return
	}
	var req models.ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	product, err := cc.catalog.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		apperrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}
