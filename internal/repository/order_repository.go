package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrDuplicateOrder    = errors.New("order already recorded for this idempotency key")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	// CreateWithStock stores the order and takes the given quantities out of
	// stock in one transaction. Nothing is written when any line cannot be
	// covered.
	CreateWithStock(ctx context.Context, order *domain.Order, lines []domain.StockLine) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByBuyerAndKey(ctx context.Context, buyerID uuid.UUID, key string) (*domain.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error)
	ListAll(ctx context.Context) ([]*domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderSelect = `
	SELECT o.id, o.products, o.payment, o.amount, o.buyer_id, o.status,
	       COALESCE(o.idempotency_key, ''), o.created_at, o.updated_at,
	       u.name, u.email
	FROM orders o
	JOIN users u ON u.id = o.buyer_id
`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	order := &domain.Order{Buyer: &domain.BuyerSummary{}}
	var products, payment []byte

	err := row.Scan(
		&order.ID,
		&products,
		&payment,
		&order.Amount,
		&order.BuyerID,
		&order.Status,
		&order.IdempotencyKey,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Buyer.Name,
		&order.Buyer.Email,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(products, &order.Products); err != nil {
		return nil, fmt.Errorf("failed to decode order products: %w", err)
	}
	if err := json.Unmarshal(payment, &order.Payment); err != nil {
		return nil, fmt.Errorf("failed to decode order payment: %w", err)
	}

	return order, nil
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return collect(rows, scanOrder)
}

// CreateWithStock inserts the order and decrements stock atomically
func (r *orderRepository) CreateWithStock(ctx context.Context, order *domain.Order, lines []domain.StockLine) error {
	products, err := json.Marshal(order.Products)
	if err != nil {
		return fmt.Errorf("failed to encode order products: %w", err)
	}
	payment, err := json.Marshal(order.Payment)
	if err != nil {
		return fmt.Errorf("failed to encode order payment: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, line := range lines {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET quantity = quantity - $2
			WHERE id = $1 AND quantity >= $2
		`, line.ProductID, line.Quantity)
		if err != nil {
			return fmt.Errorf("failed to update stock: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return fmt.Errorf("%w: product %s", ErrInsufficientStock, line.ProductID)
		}
	}

	var key sql.NullString
	if order.IdempotencyKey != "" {
		key = sql.NullString{String: order.IdempotencyKey, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, products, payment, amount, buyer_id, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		order.ID,
		products,
		payment,
		order.Amount,
		order.BuyerID,
		order.Status,
		key,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "orders_buyer_idempotency_key") {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit order: %w", err)
	}

	return nil
}

// FindByID retrieves an order by ID
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := scanOrder(r.db.QueryRowContext(ctx, orderSelect+` WHERE o.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}

// FindByBuyerAndKey finds the order a buyer already placed with an idempotency key
func (r *orderRepository) FindByBuyerAndKey(ctx context.Context, buyerID uuid.UUID, key string) (*domain.Order, error) {
	query := orderSelect + ` WHERE o.buyer_id = $1 AND o.idempotency_key = $2`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, buyerID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by idempotency key: %w", err)
	}

	return order, nil
}

// ListByBuyer returns a buyer's orders, newest first
func (r *orderRepository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]*domain.Order, error) {
	return r.query(ctx, orderSelect+` WHERE o.buyer_id = $1 ORDER BY o.created_at DESC`, buyerID)
}

// ListAll returns every order, newest first
func (r *orderRepository) ListAll(ctx context.Context) ([]*domain.Order, error) {
	return r.query(ctx, orderSelect+` ORDER BY o.created_at DESC`)
}

// UpdateStatus sets the fulfilment status of an order and returns the updated order
func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	result, err := r.db.ExecContext(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, ErrOrderNotFound
	}

	return r.FindByID(ctx, id)
}
