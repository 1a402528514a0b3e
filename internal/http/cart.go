package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
	"storefront/internal/service"
)

type addCartReq struct {
	ProductID string `json:"productId" binding:"required,objectid"`
	Size      string `json:"size" binding:"required"`
	Color     string `json:"color" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required"`
}

type updateCartReq struct {
	Quantity int64 `json:"quantity" binding:"required"`
}

func lineKey(c *gin.Context) domain.VariantKey {
	return domain.VariantKey{ProductID: c.Param("productId"), Size: c.Param("size"), Color: c.Param("color")}
}

// @Summary Get cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.CartView
// @Failure 401 {object} map[string]string
// @Router /cart [get]
func (s *Server) getCart(c *gin.Context) {
	v, err := s.svc.Carts.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Add item to cart
// @Description Quantity is merged with an existing line of the same variant
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body addCartReq true "Line"
// @Success 200 {object} service.CartView
// @Failure 400 {object} map[string]string
// @Router /cart [post]
func (s *Server) addToCart(c *gin.Context) {
	var req addCartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}
	v, err := s.svc.Carts.Add(c.Request.Context(), currentUser(c), service.AddCartItem{
		ProductID: req.ProductID,
		Size:      req.Size,
		Color:     req.Color,
		Quantity:  req.Quantity,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Set cart line quantity
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Param size path string true "Size"
// @Param color path string true "Color"
// @Param input body updateCartReq true "Quantity"
// @Success 200 {object} service.CartView
// @Failure 400 {object} map[string]string
// @Router /cart/{productId}/{size}/{color} [put]
func (s *Server) updateCartItem(c *gin.Context) {
	var req updateCartReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}
	v, err := s.svc.Carts.Update(c.Request.Context(), currentUser(c), lineKey(c), req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Remove cart line
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Param size path string true "Size"
// @Param color path string true "Color"
// @Success 200 {object} service.CartView
// @Failure 400 {object} map[string]string
// @Router /cart/{productId}/{size}/{color} [delete]
func (s *Server) removeCartItem(c *gin.Context) {
	v, err := s.svc.Carts.Remove(c.Request.Context(), currentUser(c), lineKey(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Clear cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.CartView
// @Router /cart [delete]
func (s *Server) clearCart(c *gin.Context) {
	v, err := s.svc.Carts.Clear(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
