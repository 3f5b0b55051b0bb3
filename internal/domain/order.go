package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus tracks fulfilment of an order
type OrderStatus string

const (
	OrderStatusNotProcessed OrderStatus = "Not Processed"
	OrderStatusProcessing   OrderStatus = "Processing"
	OrderStatusShipped      OrderStatus = "Shipped"
	OrderStatusDelivered    OrderStatus = "Delivered"
	OrderStatusCancelled    OrderStatus = "Cancelled"
)

// OrderStatuses lists every valid status in fulfilment order
var OrderStatuses = []OrderStatus{
	OrderStatusNotProcessed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// PaymentResult is what the gateway reported for the charge behind an order
type PaymentResult struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Type          string          `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency,omitempty"`
	Success       bool            `json:"success"`
}

func (r PaymentResult) MarshalJSON() ([]byte, error) {
	type plain PaymentResult
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amount"`
	}{plain(r), jsonNumber(r.Amount)})
}

// Order is created once a payment has been settled
type Order struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	Products       []ProductSnapshot `json:"products" db:"products"`
	Payment        PaymentResult     `json:"payment" db:"payment"`
	Amount         decimal.Decimal   `json:"amount" db:"amount"`
	BuyerID        uuid.UUID         `json:"buyer_id" db:"buyer_id"`
	Buyer          *BuyerSummary     `json:"buyer,omitempty" db:"-"`
	Status         OrderStatus       `json:"status" db:"status"`
	IdempotencyKey string            `json:"idempotency_key,omitempty" db:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
}

func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		Amount json.Number `json:"amount"`
	}{plain(o), jsonNumber(o.Amount)})
}

// BuyerSummary is the part of a user shown next to an order
type BuyerSummary struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StockLine is a quantity to take out of stock for one product
type StockLine struct {
	ProductID uuid.UUID
	Quantity  int
}
