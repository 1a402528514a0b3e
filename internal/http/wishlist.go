package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type addWishlistReq struct {
	ProductID string `json:"productId" binding:"required,objectid"`
}

// @Summary Get wishlist
// @Description Active products only, most recently added first
// @Tags wishlist
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.WishlistView
// @Router /wishlist [get]
func (s *Server) getWishlist(c *gin.Context) {
	v, err := s.svc.Wishlists.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Add to wishlist
// @Tags wishlist
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param input body addWishlistReq true "Product"
// @Success 200 {object} service.WishlistView
// @Failure 400 {object} map[string]string
// @Router /wishlist [post]
func (s *Server) addToWishlist(c *gin.Context) {
	var req addWishlistReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": bindError(err)})
		return
	}
	v, err := s.svc.Wishlists.Add(c.Request.Context(), currentUser(c), req.ProductID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Remove from wishlist
// @Tags wishlist
// @Produce json
// @Security BearerAuth
// @Param productId path string true "Product ID"
// @Success 200 {object} service.WishlistView
// @Failure 400 {object} map[string]string
// @Router /wishlist/{productId} [delete]
func (s *Server) removeFromWishlist(c *gin.Context) {
	v, err := s.svc.Wishlists.Remove(c.Request.Context(), currentUser(c), c.Param("productId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// @Summary Clear wishlist
// @Tags wishlist
// @Produce json
// @Security BearerAuth
// @Success 200 {object} service.WishlistView
// @Router /wishlist [delete]
func (s *Server) clearWishlist(c *gin.Context) {
	v, err := s.svc.Wishlists.Clear(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}
