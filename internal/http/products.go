package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type variantReq struct {
	Size  string `json:"size" binding:"required"`
	Color string `json:"color" binding:"required"`
	Stock int64  `json:"stock" binding:"min=0"`
	SKU   string `json:"sku" binding:"required"`
}

type productReq struct {
	Name           string           `json:"name" binding:"required"`
	Description    string           `json:"description"`
	Price          decimal.Decimal  `json:"price" swaggertype:"number"`
	CompareAtPrice *decimal.Decimal `json:"compareAtPrice" swaggertype:"number"`
	Category       string           `json:"category" binding:"required,oneof=sweaters jackets pants hoodies"`
	Images         []string         `json:"images"`
	Variants       []variantReq     `json:"variants" binding:"required,min=1,dive"`
	IsActive       *bool            `json:"isActive"`
}

func (r productReq) toDomain(id string) domain.Product {
	p := domain.Product{
		ID:             id,
		Name:           r.Name,
		Description:    r.Description,
		Price:          r.Price,
		CompareAtPrice: r.CompareAtPrice,
		Category:       domain.Category(r.Category),
		Images:         r.Images,
		IsActive:       true,
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	for _, v := range r.Variants {
		p.Variants = append(p.Variants, domain.Variant{Size: v.Size, Color: v.Color, Stock: v.Stock, SKU: v.SKU})
	}
	return p
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body productReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}
	p, err := s.svc.Products.Create(c.Request.Context(), req.toDomain(""))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Description Only active products are visible
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	p, err := s.svc.Products.GetActive(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Param input body productReq true "Product"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}
	p, err := s.svc.Products.Update(c.Request.Context(), req.toDomain(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags products
// @Security BearerAuth
// @Param id path string true "Product ID"
// @Success 204
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	if err := s.svc.Products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary List products
// @Tags products
// @Produce json
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(9)
// @Param category query string false "Category" Enums(sweaters, jackets, pants, hoodies)
// @Param minPrice query number false "Min price"
// @Param maxPrice query number false "Max price"
// @Param search query string false "Name or description contains"
// @Param sortBy query string false "Sort field" Enums(createdAt, price, name, rating)
// @Param sortOrder query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} service.CatalogPage
// @Failure 400 {object} map[string]string
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	q := service.CatalogQuery{
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
		Category:  c.Query("category"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	for key, dst := range map[string]**float64{"minPrice": &q.MinPrice, "maxPrice": &q.MaxPrice} {
		if v := c.Query(key); v != "" {
			x, err := strconv.ParseFloat(v, 64)
			if err != nil || x < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative number"})
				return
			}
			*dst = &x
		}
	}
	page, err := s.svc.Products.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// queryInt некорректное значение трактуется как отсутствующее
func queryInt(c *gin.Context, key string) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
