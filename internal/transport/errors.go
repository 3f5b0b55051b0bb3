package transport

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/payment"
	"storefront/internal/repository"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// statusFor lists the domain errors a client can act on. Order matters:
// the first match wins, so more specific errors come first.
var statusFor = []struct {
	err    error
	status int
}{
	{service.ErrPasswordTooShort, http.StatusBadRequest},
	{service.ErrNameRequired, http.StatusBadRequest},
	{service.ErrPhotoTooLarge, http.StatusBadRequest},
	{service.ErrUnsupportedPhoto, http.StatusBadRequest},
	{service.ErrInvalidPrice, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidStatus, http.StatusBadRequest},
	{service.ErrEmptyCart, http.StatusBadRequest},
	{service.ErrNonceRequired, http.StatusBadRequest},
	{service.ErrAddressRequired, http.StatusBadRequest},
	{service.ErrWrongEmailOrAnswer, http.StatusBadRequest},

	{service.ErrInvalidCredentials, http.StatusUnauthorized},
	{service.ErrInvalidToken, http.StatusUnauthorized},
	{service.ErrTokenExpired, http.StatusUnauthorized},

	{repository.ErrUserNotFound, http.StatusNotFound},
	{repository.ErrCategoryNotFound, http.StatusNotFound},
	{repository.ErrProductNotFound, http.StatusNotFound},
	{repository.ErrPhotoNotFound, http.StatusNotFound},
	{repository.ErrOrderNotFound, http.StatusNotFound},

	{repository.ErrUserAlreadyExists, http.StatusConflict},
	{repository.ErrCategoryAlreadyExists, http.StatusConflict},
	{repository.ErrCategoryInUse, http.StatusConflict},
	{repository.ErrProductAlreadyExists, http.StatusConflict},
	{repository.ErrInsufficientStock, http.StatusConflict},
	{service.ErrCheckoutInProgress, http.StatusConflict},

	{payment.ErrGatewayUnavailable, http.StatusBadGateway},
	{service.ErrOrderNotRecorded, http.StatusInternalServerError},
}

// respondError maps err to a status code and the message of the matching
// domain error. Unknown errors become a 500 with fallback as message.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	if errors.Is(err, service.ErrChargeNotReversed) {
		logger.Error("Charged buyer without a recorded order", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, service.ErrChargeNotReversed.Error())
		return
	}

	var gwErr *payment.GatewayError
	if errors.As(err, &gwErr) {
		logger.Warn("Payment declined", zap.Error(err))
		middleware.RespondWithError(w, http.StatusPaymentRequired, gwErr.Message)
		return
	}

	for _, known := range statusFor {
		if errors.Is(err, known.err) {
			if known.status >= http.StatusInternalServerError {
				logger.Error(fallback, zap.Error(err))
			} else {
				logger.Debug(fallback, zap.Error(err))
			}
			middleware.RespondWithError(w, known.status, known.err.Error())
			return
		}
	}

	logger.Error(fallback, zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
}

// decodeBody decodes and validates a JSON body, writing the error response
// itself. It reports whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, logger *zap.Logger, dst interface{}) bool {
	if err := middleware.DecodeAndValidate(r, dst); err != nil {
		logger.Debug("Request validation failed", zap.String("path", r.URL.Path), zap.Error(err))

		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
