package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

// @Summary Place order from cart
// @Description Reserves stock for every cart line, creates a pending order and e-mails a confirmation link
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Success 201 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /orders [post]
func (s *Server) createOrder(c *gin.Context) {
	o, err := s.svc.Orders.Checkout(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary Order history
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page" default(1)
// @Param limit query int false "Page size" default(10)
// @Success 200 {object} service.OrderHistory
// @Failure 401 {object} map[string]string
// @Router /orders [get]
func (s *Server) orderHistory(c *gin.Context) {
	h, err := s.svc.Orders.History(c.Request.Context(), currentUser(c), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h)
}

// @Summary Get order
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Router /orders/{orderId} [get]
func (s *Server) getOrder(c *gin.Context) {
	o, err := s.svc.Orders.Get(c.Request.Context(), currentUser(c), c.Param("orderId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Cancel order
// @Description Allowed from pending, confirmed and processing; reserved stock is returned
// @Tags orders
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 400 {object} map[string]string
// @Router /orders/{orderId}/cancel [patch]
func (s *Server) cancelOrder(c *gin.Context) {
	o, err := s.svc.Orders.Cancel(c.Request.Context(), currentUser(c), c.Param("orderId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

type confirmPage struct {
	OK          bool
	OrderNumber string
	TotalAmount string
	Message     string
}

// @Summary Confirm order from e-mail link
// @Tags orders
// @Produce html
// @Param orderNumber query string true "Order number"
// @Param token query string true "Confirmation token"
// @Success 200 {string} string "HTML page"
// @Failure 400 {string} string "HTML page"
// @Router /orders/confirm [get]
func (s *Server) confirmOrder(c *gin.Context) {
	number := c.Query("orderNumber")
	o, err := s.svc.Orders.Confirm(c.Request.Context(), number, c.Query("token"))
	if err != nil {
		status := mapErrorToStatus(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			logging.FromContext(c.Request.Context()).Error("order_confirm_failed", zap.String("order_number", number), zap.Error(err))
			msg = "We could not confirm your order right now. Please try again later."
		}
		c.HTML(status, "confirm.html", confirmPage{OrderNumber: number, Message: msg})
		return
	}
	c.HTML(http.StatusOK, "confirm.html", confirmPage{OK: true, OrderNumber: o.OrderNumber, TotalAmount: o.TotalAmount.StringFixed(2)})
}
