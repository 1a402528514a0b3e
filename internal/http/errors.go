package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
)

// badRequest бизнес-ошибки, которые клиент может исправить сам
var badRequest = []error{
	domain.ErrInvalidInput,
	domain.ErrInvalidID,
	domain.ErrInvalidQuantity,
	domain.ErrEmptyCart,
	domain.ErrItemNotInCart,
	domain.ErrProductNotFound,
	domain.ErrProductUnavailable,
	domain.ErrVariantUnavailable,
	domain.ErrInsufficientStock,
	domain.ErrOrderNotFound,
	domain.ErrNotOwner,
	domain.ErrCannotCancel,
	domain.ErrAlreadyProcessed,
	domain.ErrInvalidToken,
	domain.ErrTokenExpired,
	domain.ErrDuplicateNumber,
	domain.ErrAlreadyInWishlist,
	domain.ErrNotInWishlist,
	domain.ErrAlreadyVerified,
	domain.ErrInvalidCode,
}

func mapErrorToStatus(err error) int {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBadCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotVerified):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail отвечает ошибкой; внутренние ошибки логируются, клиент видит общий текст
func fail(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.FromContext(c.Request.Context()).Error("request_failed", zap.String("route", c.FullPath()), zap.Error(err))
		msg = "internal server error"
	}
	c.JSON(status, gin.H{"error": msg})
}
