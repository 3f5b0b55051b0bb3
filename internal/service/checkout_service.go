package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/lock"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// CheckoutLockTTL bounds how long one checkout attempt may hold its lock
	CheckoutLockTTL = 2 * time.Minute

	voidTimeout = 30 * time.Second
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrNonceRequired      = errors.New("payment nonce is required")
	ErrAddressRequired    = errors.New("a delivery address is required to check out")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrOrderNotRecorded   = errors.New("payment was voided because the order could not be recorded")
	ErrChargeNotReversed  = errors.New("the order could not be recorded and the payment could not be reversed; contact support, you may have been charged")
)

// PayRequest is one checkout attempt. Cart lists product IDs in cart order;
// a product appearing twice is bought twice.
type PayRequest struct {
	BuyerID        uuid.UUID
	Nonce          string
	Cart           []uuid.UUID
	IdempotencyKey string
}

// CheckoutService defines the interface for payment at checkout
type CheckoutService interface {
	ClientToken(ctx context.Context) (string, error)
	Pay(ctx context.Context, req PayRequest) (*domain.Order, error)
}

type checkoutService struct {
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	gateway     payment.Gateway
	locker      lock.Locker
	notifier    notify.Notifier
	logger      *zap.Logger
	runAsync    func(func())
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	orderRepo repository.OrderRepository,
	gateway payment.Gateway,
	locker lock.Locker,
	notifier notify.Notifier,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		userRepo:    userRepo,
		productRepo: productRepo,
		orderRepo:   orderRepo,
		gateway:     gateway,
		locker:      locker,
		notifier:    notifier,
		logger:      logger,
		runAsync:    func(f func()) { go f() },
	}
}

// ClientToken proxies a fresh drop-in token from the gateway
func (s *checkoutService) ClientToken(ctx context.Context) (string, error) {
	token, err := s.gateway.IssueClientToken(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to issue client token: %w", err)
	}
	return token, nil
}

// Pay charges the buyer for the cart at catalog prices and records the order.
// An order is written only after the gateway accepted the charge; a charge
// whose order cannot be written is voided.
func (s *checkoutService) Pay(ctx context.Context, req PayRequest) (*domain.Order, error) {
	if len(req.Cart) == 0 {
		return nil, ErrEmptyCart
	}
	if req.Nonce == "" {
		return nil, ErrNonceRequired
	}

	buyer, err := s.userRepo.FindByID(ctx, req.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load buyer: %w", err)
	}
	if !buyer.HasAddress() {
		return nil, ErrAddressRequired
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	if order, ok, err := s.replay(ctx, req); err != nil || ok {
		return order, err
	}

	lockKey := fmt.Sprintf("checkout:%s:%s", req.BuyerID, req.IdempotencyKey)
	release, ok, err := s.locker.Acquire(ctx, lockKey, CheckoutLockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	if !ok {
		return nil, ErrCheckoutInProgress
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	// A request holding the lock before us may have finished in the meantime
	if order, ok, err := s.replay(ctx, req); err != nil || ok {
		return order, err
	}

	snapshots, lines, amount, err := s.priceCart(ctx, req.Cart)
	if err != nil {
		return nil, err
	}

	orderID := uuid.New()
	tx, err := s.gateway.Charge(ctx, req.Nonce, amount, orderID.String())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &domain.Order{
		ID:       orderID,
		Products: snapshots,
		Payment: domain.PaymentResult{
			TransactionID: tx.ID,
			Status:        tx.Status,
			Type:          tx.Type,
			Amount:        tx.Amount,
			Currency:      tx.Currency,
			Success:       true,
		},
		Amount:         amount,
		BuyerID:        buyer.ID,
		Buyer:          &domain.BuyerSummary{Name: buyer.Name, Email: buyer.Email},
		Status:         domain.OrderStatusNotProcessed,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.orderRepo.CreateWithStock(ctx, order, lines); err != nil {
		return s.compensate(ctx, req, tx, err)
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("buyer_id", buyer.ID.String()),
		zap.String("transaction_id", tx.ID),
		zap.String("amount", amount.StringFixed(2)),
	)

	summary := *order.Buyer
	s.runAsync(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.OrderPlaced(ctx, summary, order); err != nil {
			s.logger.Warn("Failed to send order confirmation", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	})

	return order, nil
}

// replay returns the order already recorded for the request's idempotency key
func (s *checkoutService) replay(ctx context.Context, req PayRequest) (*domain.Order, bool, error) {
	order, err := s.orderRepo.FindByBuyerAndKey(ctx, req.BuyerID, req.IdempotencyKey)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to look up previous checkout: %w", err)
	}

	s.logger.Info("Checkout replayed",
		zap.String("order_id", order.ID.String()),
		zap.String("idempotency_key", req.IdempotencyKey),
	)
	return order, true, nil
}

// priceCart loads every product in the cart and prices it from the catalog
func (s *checkoutService) priceCart(ctx context.Context, cart []uuid.UUID) ([]domain.ProductSnapshot, []domain.StockLine, decimal.Decimal, error) {
	counts := make(map[uuid.UUID]int, len(cart))
	var ids []uuid.UUID
	for _, id := range cart {
		if counts[id] == 0 {
			ids = append(ids, id)
		}
		counts[id]++
	}

	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, decimal.Zero, fmt.Errorf("failed to load cart products: %w", err)
	}

	lines := make([]domain.StockLine, 0, len(ids))
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: %s", repository.ErrProductNotFound, id)
		}
		if product.Quantity < counts[id] {
			return nil, nil, decimal.Zero, fmt.Errorf("%w: %s", repository.ErrInsufficientStock, product.Name)
		}
		lines = append(lines, domain.StockLine{ProductID: id, Quantity: counts[id]})
	}

	snapshots := make([]domain.ProductSnapshot, 0, len(cart))
	amount := decimal.Zero
	for _, id := range cart {
		product := products[id]
		snapshots = append(snapshots, product.Snapshot())
		amount = amount.Add(product.Price)
	}

	return snapshots, lines, amount, nil
}

// compensate voids a charge whose order could not be written. When the write
// lost a race against the same idempotency key, the recorded order is returned.
func (s *checkoutService) compensate(ctx context.Context, req PayRequest, tx *payment.Transaction, cause error) (*domain.Order, error) {
	voidCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), voidTimeout)
	defer cancel()

	if err := s.gateway.Void(voidCtx, tx.ID); err != nil {
		s.logger.Error("Failed to void charge after order write failed",
			zap.String("transaction_id", tx.ID),
			zap.String("buyer_id", req.BuyerID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		// The void error is flattened so a gateway decline inside it is not
		// mistaken for a declined purchase.
		return nil, fmt.Errorf("%w: transaction %s: %w (void: %v)", ErrChargeNotReversed, tx.ID, cause, err)
	}

	s.logger.Warn("Charge voided after order write failed",
		zap.String("transaction_id", tx.ID),
		zap.String("buyer_id", req.BuyerID.String()),
		zap.Error(cause),
	)

	if errors.Is(cause, repository.ErrDuplicateOrder) {
		if order, ok, err := s.replay(voidCtx, req); err == nil && ok {
			return order, nil
		}
	}
	if errors.Is(cause, repository.ErrInsufficientStock) {
		return nil, fmt.Errorf("%w: %w", ErrOrderNotRecorded, cause)
	}

	return nil, fmt.Errorf("%w: %v", ErrOrderNotRecorded, cause)
}
