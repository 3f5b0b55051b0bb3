package transport

import (
	"net/http"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader may carry the idempotency key instead of the body
const IdempotencyKeyHeader = "Idempotency-Key"

// CartLine is a cart entry as sent by clients. Only the id is trusted.
type CartLine struct {
	ID uuid.UUID `json:"id" validate:"required"`
}

// PaymentRequest is the checkout payload
type PaymentRequest struct {
	Nonce          string     `json:"nonce"`
	Cart           []CartLine `json:"cart" validate:"dive"`
	IdempotencyKey string     `json:"idempotency_key" validate:"omitempty,max=128"`
}

// PaymentResponse is returned once the order is recorded
type PaymentResponse struct {
	OK    bool          `json:"ok"`
	Order *domain.Order `json:"order"`
}

// ClientTokenResponse carries a Braintree client token for the drop-in widget
type ClientTokenResponse struct {
	ClientToken string `json:"clientToken"`
}

// CheckoutHandler serves the payment endpoints
type CheckoutHandler struct {
	checkout service.CheckoutService
	logger   *zap.Logger
}

func NewCheckoutHandler(checkout service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// RegisterRoutes registers the payment routes on r, mounted at /api/v1/product
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Use(middleware.RequireCapability(domain.CapPurchase, h.logger))
		r.Get("/braintree/token", h.ClientToken)
		r.Post("/braintree/payment", h.Pay)
	})
}

// ClientToken issues a fresh gateway client token; tokens are never cached
func (h *CheckoutHandler) ClientToken(w http.ResponseWriter, r *http.Request) {
	token, err := h.checkout.ClientToken(r.Context())
	if err != nil {
		respondError(w, h.logger, err, "failed to issue client token")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, ClientTokenResponse{ClientToken: token})
}

// Pay charges the cart and records the order
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req PaymentRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
	}

	cart := make([]uuid.UUID, len(req.Cart))
	for i, line := range req.Cart {
		cart[i] = line.ID
	}

	order, err := h.checkout.Pay(r.Context(), service.PayRequest{
		BuyerID:        buyerID,
		Nonce:          req.Nonce,
		Cart:           cart,
		IdempotencyKey: key,
	})
	if err != nil {
		respondError(w, h.logger, err, "payment failed")
		return
	}

	h.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", buyerID.String()),
		zap.String("transaction_id", order.Payment.TransactionID),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, PaymentResponse{OK: true, Order: order})
}
